package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Trigger_Success(t *testing.T) {
	summary := domain.NewRunSummary(time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC))
	summary.ProcessedCount = 2
	summary.CreatedTransactionCount = 2
	summary.AddError(7, "wallet not found")

	var gotAuth, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summary)
	}))
	defer server.Close()

	client := NewClient(server.URL, "s3cret", time.Second, zerolog.Nop())
	result, err := client.Trigger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, summary.RunID, result.RunID)
	assert.Equal(t, 2, result.ProcessedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, int64(7), result.Errors[0].TemplateID)
}

func TestClient_Trigger_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong", time.Second, zerolog.Nop())
	result, err := client.Trigger(context.Background())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestClient_Trigger_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "s3cret", time.Second, zerolog.Nop())
	_, err := client.Trigger(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_Trigger_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, "s3cret", 50*time.Millisecond, zerolog.Nop())
	_, err := client.Trigger(context.Background())

	assert.Error(t, err)
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	client := NewClient("http://localhost", "s3cret", 0, zerolog.Nop())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}
