package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authform/auth"
	"authform/books"
	"authform/db"
	"authform/models"
)

type contextKey string

const userIDKey contextKey = "userID"

// Catalog looks books up in an external volume catalog.
type Catalog interface {
	Search(ctx context.Context, query string) ([]models.Volume, error)
	Lookup(ctx context.Context, title, author string) ([]models.Volume, error)
}

type Server struct {
	db       db.Store
	issuer   *auth.Issuer
	catalog  Catalog
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer wires the handlers. A nil catalog queries the public Google Books
// API.
func NewServer(store db.Store, issuer *auth.Issuer, catalog Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = books.NewClient(books.DefaultBaseURL, nil, logger)
	}
	return &Server{
		db:      store,
		issuer:  issuer,
		catalog: catalog,
		hub:     NewHub(logger),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Hub returns the event hub; it must be Run for websocket listeners to connect.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler wires the routes behind CORS and request logging.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	router.HandleFunc("/add", s.handleAddBook).Methods(http.MethodPost)
	router.HandleFunc("/list", s.handleListBooks).Methods(http.MethodGet)
	router.HandleFunc("/search", s.handleSearchBooks).Methods(http.MethodGet)

	router.HandleFunc("/ws", s.serveWs)
	router.HandleFunc("/me", s.authenticateMiddleware(s.handleMe)).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return s.loggingMiddleware(c.Handler(router))
}

func (s *Server) authenticateMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		userID, err := s.issuer.ValidateToken(tokenParts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.Credential
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt refuses passwords longer than 72 bytes
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			http.Error(w, "Password is too long", http.StatusBadRequest)
			return
		}
		s.logger.Error("Error hashing password", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := models.User{
		ID:       uuid.New().String(),
		Username: req.Username,
		Password: string(hashedPassword),
	}

	if err := s.db.CreateUser(&user); err != nil {
		if errors.Is(err, db.ErrUsernameExists) {
			http.Error(w, "Username already exists", http.StatusConflict)
			return
		}
		s.logger.Error("Error creating user", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	s.publish(models.EventRegister, user.Username)

	writeJSON(w, http.StatusCreated, models.Result{Message: "User created successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.Credential
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByUsername(req.Username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Error("Error loading user", zap.String("username", req.Username), zap.Error(err))
		}
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.issuer.GenerateToken(user.ID)
	if err != nil {
		s.logger.Error("Error signing token", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.publish(models.EventLogin, user.Username)

	writeJSON(w, http.StatusOK, models.Result{Message: "Login successful", Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(userIDKey).(string)
	user, err := s.db.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Error loading user", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := s.issuer.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	if !s.hub.Running() {
		http.Error(w, "Event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	l := &Listener{
		ID:     uuid.New().String(),
		UserID: userID,
		Hub:    s.hub,
		Conn:   conn,
		Send:   make(chan *models.Event, 256),
	}

	if !s.hub.join(l) {
		conn.Close()
		return
	}
	go l.writePump()
	go l.readPump()
}

func (s *Server) publish(eventType, username string) {
	s.hub.Publish(&models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
