package mailer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/acts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, m...)
	return nil
}

func newTestService(s sender) *EmailService {
	return &EmailService{dialer: s, senderEmail: "bot@example.com", senderName: "Inventory", logger: logger.NewNopLogger()}
}

func TestASCIIName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"act_Ivanov_to_Petrov.html", "act_Ivanov_to_Petrov.html"},
		{"act_Müller_to_Šimek.html", "act_Muller_to_Simek.html"},
		{"акт_Иванов.html", "act.html"},
		{"act with spaces.pdf", "act_with_spaces.pdf"},
		{"", "act"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ASCIIName(tt.in))
		})
	}
}

func TestIsLocalRelay(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":        true,
		"127.0.0.1":        true,
		"10.1.2.3":         true,
		"192.168.0.10":     true,
		"172.16.0.5":       true,
		"smtp.example.com": false,
	} {
		assert.Equal(t, want, isLocalRelay(host), host)
	}
}

func TestSendFiles(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "act_123.html")
	require.NoError(t, os.WriteFile(doc, []byte("<html>act</html>"), 0o644))

	t.Run("attaches files under their label", func(t *testing.T) {
		cs := &captureSender{}
		err := newTestService(cs).SendFiles(context.Background(), "boss@example.com",
			[]acts.Attachment{{Label: "act_Ivanov.html", Path: doc}}, "Transfer acts", "See attached.")
		require.NoError(t, err)
		require.Len(t, cs.messages, 1)

		m := cs.messages[0]
		assert.Equal(t, []string{"boss@example.com"}, m.GetHeader("To"))
		assert.Equal(t, []string{"Transfer acts"}, m.GetHeader("Subject"))

		var raw bytes.Buffer
		_, err = m.WriteTo(&raw)
		require.NoError(t, err)
		assert.Contains(t, raw.String(), `filename="act_Ivanov.html"`)
	})

	t.Run("missing attachment is an error", func(t *testing.T) {
		cs := &captureSender{}
		err := newTestService(cs).SendFiles(context.Background(), "boss@example.com",
			[]acts.Attachment{{Label: "gone.html", Path: filepath.Join(dir, "gone.html")}}, "s", "b")
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Empty(t, cs.messages)
	})

	t.Run("transport error is returned", func(t *testing.T) {
		cs := &captureSender{err: errors.New("421 service not available")}
		err := newTestService(cs).SendFiles(context.Background(), "boss@example.com",
			[]acts.Attachment{{Label: "act.html", Path: doc}}, "s", "b")
		assert.EqualError(t, err, "421 service not available")
	})

	t.Run("cancelled context sends nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cs := &captureSender{}
		err := newTestService(cs).SendFiles(ctx, "boss@example.com", nil, "s", "b")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, cs.messages)
	})
}
