package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inventory-assistant-be/pkg/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerial(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
		ok     bool
	}{
		{name: "plain", answer: "Serial Number: CN0X1234AB", want: "CN0X1234AB", ok: true},
		{name: "bracketed", answer: "Some text\nSerial Number: [9B2032AC0520]", want: "9B2032AC0520", ok: true},
		{name: "s/n", answer: "S/N: FCC00ATLBA05", want: "FCC00ATLBA05", ok: true},
		{name: "not found", answer: "Serial Number: not found", ok: false},
		{name: "mac address", answer: "Serial Number: 00:1A:2B:3C:4D:5E", ok: false},
		{name: "no answer line", answer: "I cannot see a label", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSerial(tt.answer)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_ExtractSerial(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "Serial Number: PC0U12345"}, Done: true})
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "label.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o644))

	c := NewClient(srv.URL, "llava", time.Second)
	serial, err := c.ExtractSerial(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "PC0U12345", serial)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []string{"anBlZw=="}, got.Messages[0].Images)
}

func TestClient_NoSerial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "Serial Number: unknown"}})
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "label.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o644))

	_, err := NewClient(srv.URL, "llava", time.Second).ExtractSerial(context.Background(), img)
	assert.ErrorIs(t, err, inventory.ErrNoSerial)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "label.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o644))

	_, err := NewClient(srv.URL, "llava", time.Second).ExtractSerial(context.Background(), img)
	require.Error(t, err)
	assert.NotErrorIs(t, err, inventory.ErrNoSerial)
}
