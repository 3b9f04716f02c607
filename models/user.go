package models

import "time"

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Credential is the body posted to /register and /login.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Result is the JSON body answered by /register and /login.
type Result struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Token   string `json:"token,omitempty"`
}

const (
	EventRegister = "register"
	EventLogin    = "login"
)

// Event is pushed to websocket listeners after a successful register or login.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}
