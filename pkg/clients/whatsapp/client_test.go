package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/freshstock/internal/config"
)

func TestSendAlert(t *testing.T) {
	var got outgoingText
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.WhatsAppConfig{BaseURL: srv.URL + "/", APIVersion: "v21.0", AccessToken: "token", PhoneNumberID: "12345"})
	id, err := c.SendAlert(context.Background(), " 221770000000 ", "Low stock: Milk")
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", id)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "221770000000", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "Low stock: Milk", got.Text.Body)
}

func TestSendAlert_RejectsEmptyAlert(t *testing.T) {
	c := NewClient(config.WhatsAppConfig{BaseURL: "http://127.0.0.1:1", PhoneNumberID: "12345"})

	_, err := c.SendAlert(context.Background(), "", "text")
	assert.ErrorIs(t, err, ErrEmptyAlert)
	_, err = c.SendAlert(context.Background(), "221770000000", "  ")
	assert.ErrorIs(t, err, ErrEmptyAlert)
}

func TestSendAlert_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	c := NewClient(config.WhatsAppConfig{BaseURL: srv.URL, AccessToken: "token", PhoneNumberID: "12345"})
	_, err := c.SendAlert(context.Background(), "221770000000", "y")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, 100, apiErr.Detail.Code)
	assert.False(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "Invalid parameter")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendAlert_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","code":2}}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.2"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.WhatsAppConfig{BaseURL: srv.URL, AccessToken: "token", PhoneNumberID: "12345"})
	id, err := c.SendAlert(context.Background(), "221770000000", "Expiry critical")
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short"))

	long := clip(strings.Repeat("é", maxBodyRunes+10))
	assert.Equal(t, maxBodyRunes, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "…"))
}
