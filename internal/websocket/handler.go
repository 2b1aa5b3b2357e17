package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"pharmstock/internal/config"
	apierrors "pharmstock/internal/errors"
	"pharmstock/internal/infrastructure"
)

// Handler upgrades /ws requests and attaches them to a Hub.
type Handler struct {
	hub      *Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler builds the upgrade endpoint. Cross-origin handshakes are
// accepted only from allowedOrigins; requests without an Origin header
// and same-host origins are always accepted.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	h := &Handler{
		hub:    hub,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "websocket.handler")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(allowedOrigins),
		Error:           h.upgradeError,
	}
	return h
}

// ServeHTTP performs the handshake and starts the client's pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgradeError has already written the response.
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	client := ServeWS(h.hub, NewConnectionWrapper(conn), h.cfg, traceID, h.logger)
	h.logger.InfoContext(r.Context(), "WebSocket connection established",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", client.remoteAddr))
}

func (h *Handler) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	h.hub.metrics.RecordUpgradeError(r.Context(), status)
	h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
		slog.Int("status", status),
		slog.String("error", reason.Error()),
		slog.String("origin", r.Header.Get("Origin")))

	problem := apierrors.NewProblemDetails(status, apierrors.TypeWebSocketUpgrade,
		apierrors.ErrWebSocketUpgrade.Message, reason.Error(), r.URL.Path)
	render.Render(w, r, problem)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if slices.ContainsFunc(allowed, func(o string) bool { return strings.EqualFold(o, origin) }) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
