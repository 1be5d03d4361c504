package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/perrors"
)

func TestClientCompleteSendsKeyAsQueryParam(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gk-static", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{Model: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, "gk-static", gotKey)
}

func TestClientCompletePrefersForwardedKeyOverStaticKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gk-static", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{
		Model:        "gemini-1.5-pro",
		ForwardedKey: "gk-caller",
	})
	require.NoError(t, err)
	assert.Equal(t, "gk-caller", gotKey)
}

func TestClientCompleteMaps404ToModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"no such model"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gk-static", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{Model: "missing"})

	require.Error(t, err)
	perr, ok := err.(*perrors.Err)
	require.True(t, ok)
	assert.Equal(t, perrors.ErrCodeModelNotFound, perr.Code)
	assert.Contains(t, perr.Message, "Model 'missing'")
}

func TestClientCompleteMaps403ToInsufficientQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gk-static", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{Model: "gemini-1.5-pro"})

	require.Error(t, err)
	perr, ok := err.(*perrors.Err)
	require.True(t, ok)
	assert.Equal(t, perrors.ErrCodeInsufficientQuota, perr.Code)
}
