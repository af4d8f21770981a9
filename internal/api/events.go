package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const heartbeatEvery = 15 * time.Second

// eventFilter keeps events whose type is listed; an empty filter keeps all.
type eventFilter map[string]struct{}

func parseFilter(types string) eventFilter {
	f := eventFilter{}
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f[t] = struct{}{}
		}
	}
	return f
}

func (f eventFilter) keep(evt SSEEvent) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[evt.Type]
	return ok
}

// EventsStreamHandler serves GET /v1/events/stream as Server-Sent Events.
// ?types=order.assigned,run.completed narrows the stream.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	filter := parseFilter(r.URL.Query().Get("types"))
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(Topic)
	defer s.Broker.Unsubscribe(Topic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"ts\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if !filter.keep(evt) {
				continue
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage is the frame exchanged on /v1/events/ws.
//
// client: {"type":"subscribe","types":["robot.moved"]} | {"type":"ping"}
// server: {"type":"ack"} | {"type":"event","event":{...}} | {"type":"pong"}
type wsMessage struct {
	Type  string    `json:"type"`
	Types []string  `json:"types,omitempty"`
	Event *SSEEvent `json:"event,omitempty"`
	Error string    `json:"error,omitempty"`
}

// EventsWSHandler serves GET /v1/events/ws. Events flow only after the client
// subscribes; a later subscribe replaces the filter.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	// gorilla connections allow one concurrent writer
	out := make(chan wsMessage, 32)
	done := make(chan struct{})
	defer close(done)
	send := func(m wsMessage) {
		select {
		case out <- m:
		default:
		}
	}

	var (
		mu     sync.Mutex
		filter eventFilter // nil until the client subscribes
	)
	ch := s.Broker.Subscribe(Topic)
	go func() {
		defer s.Broker.Unsubscribe(Topic, ch)
		for {
			select {
			case <-done:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				mu.Lock()
				f := filter
				mu.Unlock()
				if f == nil || !f.keep(evt) {
					continue
				}
				e := evt
				send(wsMessage{Type: "event", Event: &e})
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case msg := <-out:
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "subscribe":
			f := eventFilter{}
			for _, t := range msg.Types {
				f[t] = struct{}{}
			}
			mu.Lock()
			filter = f
			mu.Unlock()
			send(wsMessage{Type: "ack", Types: msg.Types})
		case "ping":
			send(wsMessage{Type: "pong"})
		default:
			send(wsMessage{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}
