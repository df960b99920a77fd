package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edo9300/ygopen/internal/config"
	"github.com/edo9300/ygopen/internal/duel"
)

// FeedHandler accepts simulator feed connections. Each connection streams
// JSON message envelopes for one duel; every decoded message is appended to
// that duel's log. A frame that fails to decode faults the session and the
// connection is closed.
type FeedHandler struct {
	manager  *duel.Manager
	recorder *duel.ReplayRecorder
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewFeedHandler creates the feed endpoint.
func NewFeedHandler(cfg config.WebSocketConfig, manager *duel.Manager, recorder *duel.ReplayRecorder, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{
		manager:  manager,
		recorder: recorder,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The feed comes from the simulator relay, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and pumps the feed. The duel is named
// by the duel_id query parameter.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	duelID := r.URL.Query().Get("duel_id")
	observed, err := h.manager.Get(duelID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", zap.Error(err))
		return
	}

	feedConnectionsActive.Inc()
	defer feedConnectionsActive.Dec()
	defer conn.Close()

	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}

	h.logger.Info("feed connected",
		zap.String("duel_id", duelID),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("feed read failed", zap.String("duel_id", duelID), zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		msg, err := duel.DecodeMessage(raw)
		if err != nil {
			// Protocol fault: the session cannot be trusted past this point.
			h.logger.Error("feed message rejected",
				zap.String("duel_id", duelID),
				zap.Error(err),
			)
			h.closeWithError(conn, err)
			return
		}
		observed.Append(msg)
		if h.recorder != nil {
			h.recorder.Record(duelID, msg)
		}
		recordIngest(duel.Critical(msg))
	}
}

func (h *FeedHandler) closeWithError(conn *websocket.Conn, err error) {
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
	_ = conn.WriteControl(websocket.CloseMessage, message, deadline)
}

// StartWebSocketServer runs the feed listener until the listener fails.
func StartWebSocketServer(cfg config.WebSocketConfig, manager *duel.Manager, recorder *duel.ReplayRecorder, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/feed", NewFeedHandler(cfg, manager, recorder, logger))

	server := &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
	return server.ListenAndServe()
}
