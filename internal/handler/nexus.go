package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

const (
	nexusQueueSize  = 64
	nexusWriteWait  = 10 * time.Second
	nexusPongWait   = 60 * time.Second
	nexusPingPeriod = (nexusPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Nexus транслирует события шины по обеим темам в WebSocket-соединение.
// У соединения своя очередь: если клиент не успевает читать, события отбрасываются,
// а издатель не блокируется.
func (h *Handler) Nexus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	queue := make(chan model.Event, nexusQueueSize)
	done := make(chan struct{})

	enqueue := func(ev model.Event) {
		select {
		case <-done:
		case queue <- ev:
		default:
			h.logger.Debug("nexus queue full, event dropped",
				zap.String("topic", string(ev.Topic)),
				zap.String("type", string(ev.Type)),
			)
		}
	}

	unsubscribeLedger := h.bus.Subscribe(model.TopicLedger, enqueue)
	unsubscribeAmbient := h.bus.Subscribe(model.TopicAmbient, enqueue)
	defer func() {
		unsubscribeLedger()
		unsubscribeAmbient()
		close(done)
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readNexus(conn)
	}()

	h.logger.Info("nexus client connected", zap.String("remote", r.RemoteAddr))
	h.writeNexus(conn, queue, readerDone)
	h.logger.Info("nexus client disconnected", zap.String("remote", r.RemoteAddr))
}

// readNexus читает входящие кадры, чтобы обрабатывать pong и закрытие соединения.
func (h *Handler) readNexus(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(nexusPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(nexusPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("nexus read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Handler) writeNexus(conn *websocket.Conn, queue <-chan model.Event, readerDone <-chan struct{}) {
	ticker := time.NewTicker(nexusPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return

		case ev := <-queue:
			_ = conn.SetWriteDeadline(time.Now().Add(nexusWriteWait))
			if err := conn.WriteJSON(newEventResponse(ev)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Warn("nexus write error", zap.Error(err))
				}
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(nexusWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
