package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	apierrors "casepulse/internal/errors"
	"casepulse/internal/infrastructure"
	"casepulse/internal/middleware"
)

// Handler upgrades /ws requests and attaches them to the hub.
type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	timing       Timing
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// HandlerConfig configures the upgrade.
type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	Timing          Timing
	// AllowedOrigins lists origins that may connect; "*" allows any. Requests
	// without an Origin header are always accepted.
	AllowedOrigins []string
}

// NewHandler creates the upgrade handler.
func NewHandler(hub *Hub, cfg HandlerConfig, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		hub:          hub,
		timing:       cfg.Timing,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "websocket.handler")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
		Error:           h.upgradeError,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Error has already written the response
		return
	}

	traceID := middleware.GetRequestID(r.Context())
	client := NewClient(h.hub, WrapConn(ws), traceID, h.timing, h.logger)
	h.logger.DebugContext(r.Context(), "websocket upgraded",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", middleware.GetRealIP(r)))

	go client.Serve()
}

func (h *Handler) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	infrastructure.RecordError(r.Context(), reason)
	if h.errorHandler == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	h.errorHandler.HandleError(w, r, apierrors.New(status, apierrors.CodeWebSocketUpgrade, reason.Error()))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		// same host is always fine
		return strings.HasSuffix(strings.ToLower(origin), "://"+strings.ToLower(r.Host))
	}
}
