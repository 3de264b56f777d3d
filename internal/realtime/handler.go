package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	"github.com/lifeshare/bloodlink-api/pkg/config"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
	"github.com/lifeshare/bloodlink-api/pkg/response"
)

type tokenValidator interface {
	ValidateToken(raw string) (*models.JWTClaims, error)
}

// Handler upgrades authenticated HTTP requests into hub sessions.
type Handler struct {
	hub      *Hub
	auth     tokenValidator
	logger   *zap.Logger
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
}

// NewHandler constructs the websocket endpoint handler. Origin checking is
// delegated to the CORS layer fronting this route.
func NewHandler(hub *Hub, auth tokenValidator, logger *zap.Logger, cfg config.RealtimeConfig) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 32
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 1024
	}
	return &Handler{
		hub:    hub,
		auth:   auth,
		logger: logger,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Connect godoc
// @Summary Open the realtime event stream
// @Tags Realtime
// @Param token query string true "Access token"
// @Router /ws [get]
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing token"))
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		SessionID:    uuid.NewString(),
		UserID:       claims.UserID,
		hub:          h.hub,
		conn:         conn,
		send:         make(chan []byte, h.cfg.SendBufferSize),
		logger:       h.logger,
		pingInterval: h.cfg.PingInterval,
		pongWait:     h.cfg.PongWait,
		maxMessage:   h.cfg.MaxMessageBytes,
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}
