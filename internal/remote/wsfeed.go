package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"notewire/internal/domain"
	"notewire/internal/engine"
)

const (
	feedDialTimeout = 10 * time.Second
	feedPongWait    = 60 * time.Second
	feedPingPeriod  = 54 * time.Second
	feedBuffer      = 64
)

// wsFeed is one live websocket subscription, decoding change events into
// typed engine events. Events is closed as soon as the connection drops;
// reconnecting is the engine's job.
type wsFeed[T engine.Entity] struct {
	conn       *websocket.Conn
	collection string
	events     chan engine.Event[T]
	closeOnce  sync.Once
	done       chan struct{}
}

// Subscribe dials the server's websocket endpoint for this collection.
func (col *Collection[T]) Subscribe(ctx context.Context) (engine.Feed[T], error) {
	u, err := url.Parse(col.client.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", col.client.token)
	q.Set("device_id", col.client.deviceID)
	q.Set("collection", col.name)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: feedDialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s feed: %w", col.name, err)
	}

	f := &wsFeed[T]{
		conn:       conn,
		collection: col.name,
		events:     make(chan engine.Event[T], feedBuffer),
		done:       make(chan struct{}),
	}
	go f.readPump()
	go f.pingPump()
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		}
	}()
	return f, nil
}

func (f *wsFeed[T]) Events() <-chan engine.Event[T] {
	return f.events
}

func (f *wsFeed[T]) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.conn.Close()
	})
	return err
}

func (f *wsFeed[T]) readPump() {
	defer func() {
		f.Close()
		close(f.events)
	}()

	f.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		_, raw, err := f.conn.ReadMessage()
		if err != nil {
			return
		}

		// server frames are {"type": "...", "payload": ...}; only change
		// frames matter here
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "change" {
			continue
		}

		var change domain.ChangeEvent
		if err := json.Unmarshal(msg.Payload, &change); err != nil {
			continue
		}
		if change.Collection != f.collection {
			continue
		}

		ev := engine.Event[T]{ID: change.EntityID}
		switch change.Type {
		case domain.ChangeInsert:
			ev.Type = engine.EventInsert
		case domain.ChangeUpdate:
			ev.Type = engine.EventUpdate
		case domain.ChangeDelete:
			ev.Type = engine.EventDelete
		default:
			continue
		}
		if change.Type != domain.ChangeDelete {
			if err := json.Unmarshal(change.Entity, &ev.Doc); err != nil {
				continue
			}
		}

		select {
		case f.events <- ev:
		case <-f.done:
			return
		}
	}
}

func (f *wsFeed[T]) pingPump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(feedDialTimeout)
			if err := f.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.Close()
				return
			}
		case <-f.done:
			return
		}
	}
}
