package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"inventory-assistant-be/internal/dto"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/pkg/serverutils"
	"inventory-assistant-be/pkg/dialog/action"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "gateway-secret"

type fakePublisher struct {
	msgs []dto.ChatEventMessage
	err  error
}

func (p *fakePublisher) Publish(msg dto.ChatEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newApp(t *testing.T, pub *fakePublisher) (*fiber.App, string) {
	t.Helper()
	log := logger.NewNopLogger()
	tempDir := t.TempDir()
	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler(log)})
	h := NewGatewayHandler(pub, nil, fixedCount(2), nil, testSecret, tempDir, log)
	h.RegisterRoutes(app.Group("/api"))
	return app, tempDir
}

func post(t *testing.T, app *fiber.App, token string, body interface{}) (int, serverutils.Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out serverutils.Response
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

func TestGatewayHandler_PostEvent(t *testing.T) {
	gateway := sign(t, jwt.MapClaims{"role": serverutils.RoleGateway})
	alice := sign(t, jwt.MapClaims{"user_id": "alice"})

	tests := []struct {
		name       string
		token      string
		body       map[string]interface{}
		wantStatus int
		check      func(t *testing.T, msg dto.ChatEventMessage)
	}{
		{
			name:       "missing token",
			body:       map[string]interface{}{"user_id": "alice", "type": "text", "text": "hi"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad signature",
			token:      "Bearer.not.a.token",
			body:       map[string]interface{}{"user_id": "alice", "type": "text", "text": "hi"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "text from the user",
			token:      alice,
			body:       map[string]interface{}{"user_id": "alice", "type": "text", "text": "AB0C12"},
			wantStatus: http.StatusAccepted,
			check: func(t *testing.T, msg dto.ChatEventMessage) {
				assert.Equal(t, "AB0C12", msg.Text)
				assert.Equal(t, "alice", msg.ChatID, "chat defaults to the user")
				assert.NotEmpty(t, msg.EventID)
			},
		},
		{
			name:       "user cannot post for someone else",
			token:      alice,
			body:       map[string]interface{}{"user_id": "bob", "type": "text", "text": "hi"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "gateway posts for anyone",
			token:      gateway,
			body:       map[string]interface{}{"user_id": "bob", "chat_id": "group-1", "type": "command", "command": "/Search@inv_bot"},
			wantStatus: http.StatusAccepted,
			check: func(t *testing.T, msg dto.ChatEventMessage) {
				assert.Equal(t, "search", msg.Command)
				assert.Equal(t, "group-1", msg.ChatID)
			},
		},
		{
			name:       "action decoded once",
			token:      gateway,
			body:       map[string]interface{}{"user_id": "bob", "type": "action", "action": "transfer_location:2"},
			wantStatus: http.StatusAccepted,
			check: func(t *testing.T, msg dto.ChatEventMessage) {
				assert.Equal(t, int(action.TransferLocation), msg.ActionKind)
				assert.Equal(t, "2", msg.ActionArg)
			},
		},
		{
			name:       "unknown action",
			token:      gateway,
			body:       map[string]interface{}{"user_id": "bob", "type": "action", "action": "launch_rockets"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "text required for text events",
			token:      gateway,
			body:       map[string]interface{}{"user_id": "bob", "type": "text"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported type",
			token:      gateway,
			body:       map[string]interface{}{"user_id": "bob", "type": "sticker"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			app, _ := newApp(t, pub)

			status, _ := post(t, app, tt.token, tt.body)
			require.Equal(t, tt.wantStatus, status)
			if tt.check == nil {
				assert.Empty(t, pub.msgs)
				return
			}
			require.Len(t, pub.msgs, 1)
			tt.check(t, pub.msgs[0])
		})
	}
}

func TestGatewayHandler_ValidationErrors(t *testing.T) {
	app, _ := newApp(t, &fakePublisher{})
	status, resp := post(t, app, sign(t, jwt.MapClaims{"role": "gateway"}), map[string]interface{}{"type": "command"})

	assert.Equal(t, http.StatusBadRequest, status)
	fields, ok := resp.Errors.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "userid")
	assert.Contains(t, fields, "command")
}

func TestGatewayHandler_Photo(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": "alice"})
	photo := base64.StdEncoding.EncodeToString([]byte("\xff\xd8jpeg"))

	t.Run("saved for recognition", func(t *testing.T) {
		pub := &fakePublisher{}
		app, tempDir := newApp(t, pub)

		status, _ := post(t, app, token, map[string]interface{}{"user_id": "alice", "type": "photo", "photo": photo})
		require.Equal(t, http.StatusAccepted, status)
		require.Len(t, pub.msgs, 1)

		path := pub.msgs[0].PhotoPath
		assert.Contains(t, path, tempDir)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "\xff\xd8jpeg", string(data))
	})

	t.Run("not base64", func(t *testing.T) {
		app, _ := newApp(t, &fakePublisher{})
		status, _ := post(t, app, token, map[string]interface{}{"user_id": "alice", "type": "photo", "photo": "%%%"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("bus down removes the photo", func(t *testing.T) {
		app, tempDir := newApp(t, &fakePublisher{err: errors.New("closed")})
		status, _ := post(t, app, token, map[string]interface{}{"user_id": "alice", "type": "photo", "photo": photo})
		assert.Equal(t, http.StatusServiceUnavailable, status)

		entries, err := os.ReadDir(tempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestGatewayHandler_HealthAndWebsocket(t *testing.T) {
	app, _ := newApp(t, &fakePublisher{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Health dto.HealthResponse `json:"health"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Data.Health.Status)
	assert.Equal(t, 2, body.Data.Health.ActiveSessions)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{name: "no token", url: "/api/ws", want: http.StatusUnauthorized},
		{name: "bad token", url: "/api/ws?token=nope", want: http.StatusUnauthorized},
		{name: "plain http", url: "/api/ws?token=" + sign(t, jwt.MapClaims{"user_id": "alice"}), want: http.StatusUpgradeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.url, nil), -1)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
