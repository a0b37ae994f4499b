package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"unifield-backend/internal/gateway"
	"unifield-backend/pkg/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// RealtimeHandler streams a table's change events over a websocket as
// {"table","kind","id"} frames.
type RealtimeHandler struct {
	Gateway gateway.Gateway
}

func NewRealtimeHandler(gw gateway.Gateway) *RealtimeHandler {
	return &RealtimeHandler{Gateway: gw}
}

// Stream handles GET /api/realtime?table=orders&events=insert,update
func (h *RealtimeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "table is required")
		return
	}
	kinds, err := gateway.ParseEventKinds(r.URL.Query().Get("events"))
	if err != nil {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before upgrading so an unknown table is still a plain HTTP error
	sub, err := h.Gateway.Subscribe(ctx, table, kinds...)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Realtime] WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	// The client never sends data frames; reading surfaces its close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
