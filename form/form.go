// Package form submits username/password credentials to the register and
// login endpoints and renders a single outcome string per attempt.
package form

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"authform/models"
)

const (
	RegisterPath = "/register"
	LoginPath    = "/login"

	RegisterUsernameID = "registerUsername"
	RegisterPasswordID = "registerPassword"
	RegisterResultID   = "registerResult"
	LoginUsernameID    = "loginUsername"
	LoginPasswordID    = "loginPassword"
	LoginResultID      = "loginResult"

	RegisterLogPrefix = "Registration error:"
	LoginLogPrefix    = "Login error:"

	// ErrorPrefix starts every outcome produced by a failed submission.
	ErrorPrefix = "An error occurred: "
)

// Form posts the credential read from two sources to a fixed path and writes
// the outcome to a sink. Concurrent Submit calls are not serialized; whichever
// response completes last owns the sink.
type Form struct {
	client    *http.Client
	baseURL   string
	path      string
	logPrefix string
	logger    *zap.Logger

	username Source
	password Source
	result   Sink
}

type Option func(*Form)

// WithBaseURL sets the scheme and host the endpoint path is appended to.
func WithBaseURL(u string) Option {
	return func(f *Form) { f.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Form) { f.client = c }
}

// WithLogger sets the diagnostic channel failures are written to.
func WithLogger(l *zap.Logger) Option {
	return func(f *Form) { f.logger = l }
}

func WithLogPrefix(p string) Option {
	return func(f *Form) { f.logPrefix = p }
}

// New builds a form posting to path. The default client carries no overall
// timeout, only the transport defaults of go-cleanhttp.
func New(path string, username, password Source, result Sink, opts ...Option) *Form {
	f := &Form{
		path:      path,
		username:  username,
		password:  password,
		result:    result,
		logPrefix: "Submission error:",
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = cleanhttp.DefaultPooledClient()
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Register builds a form posting to /register from the given handles.
func Register(username, password Source, result Sink, opts ...Option) *Form {
	return New(RegisterPath, username, password, result,
		append([]Option{WithLogPrefix(RegisterLogPrefix)}, opts...)...)
}

// Login builds a form posting to /login from the given handles.
func Login(username, password Source, result Sink, opts ...Option) *Form {
	return New(LoginPath, username, password, result,
		append([]Option{WithLogPrefix(LoginLogPrefix)}, opts...)...)
}

// NewRegister binds the registration elements of doc to /register.
func NewRegister(doc *Document, opts ...Option) (*Form, error) {
	return bind(doc, Register, RegisterUsernameID, RegisterPasswordID, RegisterResultID, opts)
}

// NewLogin binds the login elements of doc to /login.
func NewLogin(doc *Document, opts ...Option) (*Form, error) {
	return bind(doc, Login, LoginUsernameID, LoginPasswordID, LoginResultID, opts)
}

func bind(doc *Document, build func(Source, Source, Sink, ...Option) *Form, userID, passID, resultID string, opts []Option) (*Form, error) {
	username, err := doc.Element(userID)
	if err != nil {
		return nil, err
	}
	password, err := doc.Element(passID)
	if err != nil {
		return nil, err
	}
	result, err := doc.Element(resultID)
	if err != nil {
		return nil, err
	}
	return build(username, password, result, opts...), nil
}

// Submit performs one submission. Every network outcome, failures included,
// ends up in the result sink and Submit returns nil; only an unreadable
// input source is reported to the caller.
func (f *Form) Submit(ctx context.Context) error {
	username, err := f.username.Value()
	if err != nil {
		return fmt.Errorf("read username: %w", err)
	}
	password, err := f.password.Value()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	outcome, err := f.post(ctx, models.Credential{Username: username, Password: password})
	if err != nil {
		f.logger.Error(f.logPrefix, zap.String("kind", errorKind(err)), zap.Error(err))
		outcome = ErrorPrefix + err.Error()
	}
	f.result.SetText(outcome)
	return nil
}

func (f *Form) post(ctx context.Context, cred models.Credential) (string, error) {
	payload, err := json.Marshal(cred)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+f.path, bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return outcomeOf(body)
}

// outcomeOf evaluates `message || error` over a JSON body and renders the
// result the way a browser assigns it to textContent. A null body cannot be
// indexed and fails; any other non-object body has neither field and yields
// an empty outcome.
func outcomeOf(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", &ParseError{Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	if dec.More() {
		return "", &ParseError{Err: errors.New("invalid JSON response: trailing data")}
	}

	if v == nil {
		return "", &ParseError{Err: errors.New("invalid JSON response: null body")}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", nil
	}
	if msg := obj["message"]; truthy(msg) {
		return text(msg), nil
	}
	return text(obj["error"]), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		n, err := t.Float64()
		return err != nil || n != 0
	}
	// arrays and objects, empty ones included
	return true
}

// text converts a decoded JSON value to its script string form. Missing and
// null values render empty.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return formatNumber(n)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = text(e)
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

// formatNumber prints the shortest round-trip form, switching to exponent
// notation outside [1e-6, 1e21) with an unpadded exponent.
func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if abs := math.Abs(n); abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
