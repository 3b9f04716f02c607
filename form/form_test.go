package form

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"authform/models"
)

func newDocument(username, password string) *Document {
	doc := NewDocument()
	doc.Add(RegisterUsernameID, NewField(username))
	doc.Add(RegisterPasswordID, NewField(password))
	doc.Add(RegisterResultID, NewField(""))
	doc.Add(LoginUsernameID, NewField(username))
	doc.Add(LoginPasswordID, NewField(password))
	doc.Add(LoginResultID, NewField(""))
	return doc
}

func resultText(t *testing.T, doc *Document, id string) string {
	t.Helper()
	f, err := doc.Element(id)
	require.NoError(t, err)
	return f.Text()
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestSubmitRendersServerOutcome(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message", http.StatusOK, `{"message":"X"}`, "X"},
		{"error without message", http.StatusOK, `{"error":"Y"}`, "Y"},
		{"message preferred over error", http.StatusOK, `{"message":"ok","error":"bad"}`, "ok"},
		{"empty message falls back", http.StatusOK, `{"message":"","error":"Y"}`, "Y"},
		{"created", http.StatusCreated, `{"message":"User created successfully"}`, "User created successfully"},
		{"neither field", http.StatusOK, `{"token":"abc"}`, ""},
		{"not an object", http.StatusOK, `["message"]`, ""},
		{"numeric message", http.StatusOK, `{"message":42}`, "42"},
		{"zero message falls back", http.StatusOK, `{"message":0,"error":"Y"}`, "Y"},
		{"zero error rendered", http.StatusOK, `{"message":"","error":0}`, "0"},
		{"false error rendered", http.StatusOK, `{"error":false}`, "false"},
		{"null error empty", http.StatusOK, `{"message":null,"error":null}`, ""},
		{"true message", http.StatusOK, `{"message":true}`, "true"},
		{"array message joined", http.StatusOK, `{"message":["a","b"]}`, "a,b"},
		{"array with null element", http.StatusOK, `{"message":["a",null,2]}`, "a,,2"},
		{"empty array message is truthy", http.StatusOK, `{"message":[],"error":"Y"}`, ""},
		{"object message", http.StatusOK, `{"message":{"a":1}}`, "[object Object]"},
		{"integral float message", http.StatusOK, `{"message":1.0}`, "1"},
		{"fraction message", http.StatusOK, `{"message":0.5}`, "0.5"},
		{"large number message", http.StatusOK, `{"message":1e21}`, "1e+21"},
		{"small number message", http.StatusOK, `{"message":1.5e-7}`, "1.5e-7"},
		{"primitive body", http.StatusOK, `"hello"`, ""},
		{"null body", http.StatusOK, `null`, "An error occurred: invalid JSON response: null body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(respond(tt.status, tt.body))
			defer srv.Close()

			doc := newDocument("alice", "secret")
			f, err := NewRegister(doc, WithBaseURL(srv.URL))
			require.NoError(t, err)

			require.NoError(t, f.Submit(context.Background()))
			assert.Equal(t, tt.want, resultText(t, doc, RegisterResultID))
		})
	}
}

func TestSubmitSendsCredentialAsJSON(t *testing.T) {
	var (
		gotMethod, gotPath, gotType string
		gotCred                     models.Credential
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotCred)
		_, _ = w.Write([]byte(`{"message":"Registered"}`))
	}))
	defer srv.Close()

	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	require.NoError(t, f.Submit(context.Background()))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/register", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, models.Credential{Username: "alice", Password: "secret"}, gotCred)
	assert.Equal(t, "Registered", resultText(t, doc, RegisterResultID))
}

func TestLoginUsesLoginElements(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"message":"Login successful","token":"t"}`))
	}))
	defer srv.Close()

	doc := newDocument("alice", "secret")
	f, err := NewLogin(doc, WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, f.Submit(context.Background()))

	assert.Equal(t, "/login", gotPath)
	assert.Equal(t, "Login successful", resultText(t, doc, LoginResultID))
	assert.Empty(t, resultText(t, doc, RegisterResultID))
}

func TestSubmitStatusFailure(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusBadRequest, "username taken"))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(srv.URL), WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, "An error occurred: Request failed: 400 - username taken", resultText(t, doc, RegisterResultID))

	entries := logs.FilterMessage(RegisterLogPrefix).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "http", entries[0].ContextMap()["kind"])
}

func TestSubmitStatusFailureIgnoresJSONBody(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusUnauthorized, `{"error":"invalid credentials"}`))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	doc := newDocument("alice", "wrong")
	f, err := NewLogin(doc, WithBaseURL(srv.URL), WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, `An error occurred: Request failed: 401 - {"error":"invalid credentials"}`, resultText(t, doc, LoginResultID))
	assert.Equal(t, 1, logs.FilterMessage(LoginLogPrefix).Len())
}

func TestSubmitTransportFailure(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `{}`))
	url := srv.URL
	srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(url), WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.NoError(t, f.Submit(context.Background()))
	assert.True(t, strings.HasPrefix(resultText(t, doc, RegisterResultID), ErrorPrefix))

	entries := logs.FilterMessage(RegisterLogPrefix).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "transport", entries[0].ContextMap()["kind"])
}

func TestSubmitParseFailure(t *testing.T) {
	for _, body := range []string{"not json", "", "null"} {
		srv := httptest.NewServer(respond(http.StatusOK, body))

		core, logs := observer.New(zapcore.DebugLevel)
		doc := newDocument("alice", "secret")
		f, err := NewRegister(doc, WithBaseURL(srv.URL), WithLogger(zap.New(core)))
		require.NoError(t, err)

		require.NoError(t, f.Submit(context.Background()))
		assert.True(t, strings.HasPrefix(resultText(t, doc, RegisterResultID), ErrorPrefix+"invalid JSON response"))

		entries := logs.FilterMessage(RegisterLogPrefix).All()
		require.Len(t, entries, 1)
		assert.Equal(t, "parse", entries[0].ContextMap()["kind"])
		srv.Close()
	}
}

func TestSubmitOverwritesPreviousOutcome(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"message":"Registered"}`))
	}))
	defer srv.Close()

	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, f.Submit(context.Background()))
	assert.True(t, strings.HasPrefix(resultText(t, doc, RegisterResultID), ErrorPrefix))

	status.Store(http.StatusOK)
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, "Registered", resultText(t, doc, RegisterResultID))
}

func TestSubmitIsRepeatable(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusConflict, "Username already exists"))
	defer srv.Close()

	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, f.Submit(context.Background()))
	first := resultText(t, doc, RegisterResultID)
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, first, resultText(t, doc, RegisterResultID))
}

func TestSubmitReadsCurrentInputValues(t *testing.T) {
	var got []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cred models.Credential
		_ = json.NewDecoder(r.Body).Decode(&cred)
		mu.Lock()
		got = append(got, cred.Username)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, f.Submit(context.Background()))
	user, err := doc.Element(RegisterUsernameID)
	require.NoError(t, err)
	user.SetText("bob")
	require.NoError(t, f.Submit(context.Background()))

	assert.Equal(t, []string{"alice", "bob"}, got)
}

func TestConcurrentSubmissions(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `{"message":"ok"}`))
	defer srv.Close()

	doc := newDocument("alice", "secret")
	f, err := NewRegister(doc, WithBaseURL(srv.URL))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.Submit(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, "ok", resultText(t, doc, RegisterResultID))
}

type failingSource struct{}

func (failingSource) Value() (string, error) { return "", errors.New("detached") }

func TestSubmitReturnsSourceError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	out := NewField("previous")
	f := New(RegisterPath, failingSource{}, StaticSource("secret"), out, WithBaseURL(srv.URL))

	err := f.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read username")
	assert.Equal(t, "previous", out.Text())
	assert.Zero(t, hits.Load())
}

func TestBindRequiresElements(t *testing.T) {
	doc := NewDocument()
	doc.Add(LoginUsernameID, NewField("alice"))

	_, err := NewLogin(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LoginPasswordID)

	_, err = NewRegister(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), RegisterUsernameID)
}

func TestWriterSink(t *testing.T) {
	var b strings.Builder
	f := New(LoginPath, StaticSource("a"), StaticSource("b"), NewWriterSink(&b), WithBaseURL("http://127.0.0.1:0"))

	require.NoError(t, f.Submit(context.Background()))
	assert.True(t, strings.HasPrefix(b.String(), ErrorPrefix))
	assert.True(t, strings.HasSuffix(b.String(), "\n"))
}

func TestHandleConstructors(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	var out strings.Builder
	sink := NewWriterSink(&out)
	opts := []Option{WithBaseURL(srv.URL), WithLogger(zap.New(core))}

	require.NoError(t, Register(StaticSource("alice"), StaticSource("secret"), sink, opts...).Submit(context.Background()))
	require.NoError(t, Login(StaticSource("alice"), StaticSource("secret"), sink, opts...).Submit(context.Background()))

	mu.Lock()
	assert.Equal(t, []string{RegisterPath, LoginPath}, paths)
	mu.Unlock()
	want := ErrorPrefix + "Request failed: 418 - nope\n\n"
	assert.Equal(t, want+want, out.String())
	assert.Equal(t, 1, logs.FilterMessage(RegisterLogPrefix).Len())
	assert.Equal(t, 1, logs.FilterMessage(LoginLogPrefix).Len())
}
