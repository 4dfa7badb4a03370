package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	httpadapter "github.com/atvirokodosprendimai/agentledger/internal/adapters/http"
	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/gorilla/websocket"
)

// followEvents prints events from the websocket stream until ctx ends or the
// server closes the connection.
func followEvents(ctx context.Context, cfg cliConfig, after uint64, raw bool) error {
	u, err := url.Parse(strings.TrimRight(cfg.Server, "/") + "/api/events/stream")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"after": {strconv.FormatUint(after, 10)}}.Encode()

	header := http.Header{}
	if cfg.GatewayKey != "" {
		header.Set("Authorization", "Bearer "+cfg.GatewayKey)
	}
	if cfg.Caller != "" {
		header.Set(httpadapter.CallerHeader, cfg.Caller)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("event stream (%d): %w", resp.StatusCode, err)
		}
		return err
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if raw {
			b, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			continue
		}
		fmt.Println(strings.Join(eventRow(ev), "\t"))
	}
}
