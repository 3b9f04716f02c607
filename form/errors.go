package form

import "fmt"

// StatusError is returned for any non-2xx response. Body is the raw response text.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Request failed: %d - %s", e.Code, e.Body)
}

// TransportError means the request never produced a readable response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means a 2xx body was not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

func errorKind(err error) string {
	switch err.(type) {
	case *StatusError:
		return "http"
	case *TransportError:
		return "transport"
	case *ParseError:
		return "parse"
	}
	return "unknown"
}
