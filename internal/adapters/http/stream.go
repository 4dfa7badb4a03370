package http

import (
	"log"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
	streamReplayPage = 500
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventStream replays the event log after ?after= and then follows
// live events. Events are written in seq order without duplicates.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	after, ok := queryUint(w, r, "after")
	if !ok {
		return
	}

	// Subscribe before replaying so nothing committed in between is lost.
	live, cancel := h.ledger.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket read error: %v", err)
				}
				return
			}
		}
	}()

	last, err := h.replay(r, conn, after)
	if err != nil {
		log.Printf("event replay error: %v", err)
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-live:
			if !ok {
				return
			}
			if ev.Seq <= last {
				continue
			}
			if ev.Seq > last+1 {
				// Missed live events; fill the gap from the log.
				if last, err = h.replay(r, conn, last); err != nil {
					log.Printf("event replay error: %v", err)
					return
				}
				if ev.Seq <= last {
					continue
				}
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
			last = ev.Seq
		}
	}
}

func (h *Handler) replay(r *http.Request, conn *websocket.Conn, after uint64) (uint64, error) {
	last := after
	for {
		page, err := h.ledger.ListEvents(r.Context(), last, streamReplayPage)
		if err != nil {
			return last, err
		}
		for _, ev := range page {
			if err := writeEvent(conn, ev); err != nil {
				return last, err
			}
			last = ev.Seq
		}
		if len(page) < streamReplayPage {
			return last, nil
		}
	}
}

func writeEvent(conn *websocket.Conn, ev domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(ev)
}
