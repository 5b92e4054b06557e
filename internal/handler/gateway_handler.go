package handler

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"time"

	"inventory-assistant-be/internal/dto"
	"inventory-assistant-be/internal/mapper"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/pkg/serverutils"
	"inventory-assistant-be/internal/service"
	internalWS "inventory-assistant-be/internal/websocket"
	"inventory-assistant-be/pkg/dialog/action"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SessionCounter reports active dialogue sessions.
type SessionCounter interface {
	Count() int
}

// EventCounter reports domain events seen on the bus.
type EventCounter interface {
	Counts() map[string]int64
}

type GatewayHandler struct {
	publisher service.IChatEventPublisher
	hub       *internalWS.Hub
	sessions  SessionCounter
	audit     EventCounter
	secret    string
	tempDir   string
	startedAt time.Time
	logger    logger.ILogger
}

func NewGatewayHandler(
	publisher service.IChatEventPublisher,
	hub *internalWS.Hub,
	sessions SessionCounter,
	audit EventCounter,
	secret, tempDir string,
	log logger.ILogger,
) *GatewayHandler {
	return &GatewayHandler{
		publisher: publisher,
		hub:       hub,
		sessions:  sessions,
		audit:     audit,
		secret:    secret,
		tempDir:   tempDir,
		startedAt: time.Now(),
		logger:    log,
	}
}

func (h *GatewayHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Post("/events", serverutils.JwtMiddleware(h.secret), h.PostEvent)
	router.Get("/ws", h.ServeWs)
}

// PostEvent validates one chat event, decodes its action and queues it for the
// dispatcher. Replies arrive asynchronously over the websocket.
func (h *GatewayHandler) PostEvent(ctx *fiber.Ctx) error {
	var req dto.ChatEventRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if !serverutils.IsGateway(ctx) && serverutils.Subject(ctx) != req.UserID {
		return fiber.NewError(fiber.StatusForbidden, "Token does not belong to this user")
	}

	var act action.Action
	if req.Type == dto.EventTypeAction {
		act = action.Parse(req.Action)
		if act.Kind == action.Unknown {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown action: "+req.Action)
		}
	}

	eventID := uuid.NewString()
	var photoPath string
	if req.Type == dto.EventTypePhoto {
		path, err := h.savePhoto(eventID, req.Photo)
		if err != nil {
			return err
		}
		photoPath = path
	}

	msg := mapper.ToChatEventMessage(&req, eventID, act, photoPath)
	if err := h.publisher.Publish(msg); err != nil {
		if photoPath != "" {
			os.Remove(photoPath)
		}
		h.logger.Error("GatewayHandler", "Failed to queue chat event", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err,
		})
		return fiber.NewError(fiber.StatusServiceUnavailable, "Event bus unavailable")
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Event accepted", dto.ChatEventAccepted{EventID: eventID}))
}

// savePhoto writes the decoded photo under a temp_ name so stale copies are
// picked up by the maintenance cleanup.
func (h *GatewayHandler) savePhoto(eventID, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return "", fiber.NewError(fiber.StatusBadRequest, "Photo must be base64 encoded")
	}
	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.tempDir, "temp_"+eventID+".jpg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (h *GatewayHandler) Health(ctx *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions.Count()
	}
	if h.hub != nil {
		resp.Connections = h.hub.Connections()
	}
	body := fiber.Map{"health": resp}
	if h.audit != nil {
		body["events"] = h.audit.Counts()
	}
	return ctx.JSON(serverutils.SuccessResponse("Service healthy", body))
}

// ServeWs authenticates the handshake and attaches the connection to the hub.
// Gateway tokens subscribe to every user's replies.
func (h *GatewayHandler) ServeWs(ctx *fiber.Ctx) error {
	tokenStr := serverutils.BearerToken(ctx)
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token (query 'token' or header 'Authorization')")
	}
	claims, err := serverutils.ParseToken(tokenStr, h.secret)
	if err != nil {
		h.logger.Warn("GatewayHandler", "Invalid token in websocket handshake", map[string]interface{}{"error": err.Error()})
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	key := claims.Subject
	if claims.Role == serverutils.RoleGateway {
		key = internalWS.GatewayKey
	}

	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(c *websocket.Conn) {
		h.logger.Info("GatewayHandler", "Websocket session started", map[string]interface{}{"key": key})
		internalWS.ServeWs(h.hub, c, key)
		h.logger.Info("GatewayHandler", "Websocket session ended", map[string]interface{}{"key": key})
	})(ctx)
}
