package socket

import (
	"context"
	"dwilive/auth"
	"dwilive/contract"
	"dwilive/services"
	"dwilive/sink"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	BufferSize int
	ReadLimit  int64
	PongWait   time.Duration
	WriteWait  time.Duration
}

func DefaultOptions() Options {
	return Options{
		BufferSize: 64,
		ReadLimit:  64 * 1024,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Handler upgrades authenticated requests to websocket connections. It must
// be mounted behind auth.Middleware so no socket opens without a user.
type Handler struct {
	chat       services.IChatService
	registry   contract.IRegistry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       Options
	log        *slog.Logger
}

func NewHandler(chat services.IChatService, registry contract.IRegistry, opts Options, log *slog.Logger) *Handler {
	return &Handler{
		chat:       chat,
		registry:   registry,
		dispatcher: NewDispatcher(chat, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts: opts,
		log:  log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "user_id", user.ID, "error", err)
		return
	}

	connID := uuid.NewString()
	out := sink.NewConnectionSink(connID, user.ID, h.opts.BufferSize)
	h.registry.Register(out)
	session := services.Session{ConnID: connID, User: user}
	c := &connection{
		conn:       conn,
		session:    session,
		sink:       out,
		dispatcher: h.dispatcher,
		opts:       h.opts,
		log:        h.log,
	}
	h.log.Debug("Connection opened", "connection_id", connID, "user_id", user.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	// Handlers keep the request values but not its cancellation.
	c.readLoop(context.WithoutCancel(r.Context()))

	h.chat.Disconnect(session)
	out.Close()
	<-done
}
