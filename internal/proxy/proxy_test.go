package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPassesTokenAndBody(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	c := NewCoreClient(backend.URL, time.Second)
	body, _ := json.Marshal(map[string]string{"id": "acme"})
	res, err := c.Forward(context.Background(), "POST", "/api/v1/tenants", "tok-123", body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(res.Body))
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Contains(t, gotContentType, "application/json")
	assert.JSONEq(t, `{"id":"acme"}`, string(gotBody))
}

func TestForwardWithoutToken(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	c := NewCoreClient(backend.URL, time.Second)
	_, err := c.Forward(context.Background(), "POST", "/api/v1/auth/login", "", []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestForwardRelaysCoreErrorsAsResponses(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"downstream"}`))
	}))
	defer backend.Close()

	c := NewCoreClient(backend.URL, time.Second)
	res, err := c.Forward(context.Background(), "GET", "/api/v1/stats", "tok", nil)
	require.NoError(t, err) // core 5xx is a response, not a transport error
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
}

func TestForwardUnreachableCore(t *testing.T) {
	c := NewCoreClient("http://127.0.0.1:1", 200*time.Millisecond)

	_, err := c.Forward(context.Background(), "GET", "/health", "", nil)
	assert.ErrorIs(t, err, ErrCoreUnavailable)
}

func TestForwardTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer backend.Close()

	c := NewCoreClient(backend.URL, 50*time.Millisecond)
	_, err := c.Forward(context.Background(), "GET", "/health", "", nil)
	assert.ErrorIs(t, err, ErrCoreUnavailable)
}

func TestCheckHealth(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer backend.Close()

	c := NewCoreClient(backend.URL, time.Second)
	res, err := c.CheckHealth(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
