package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseFilter(t *testing.T) {
	f := parseFilter(" order.assigned, ,run.completed")
	if len(f) != 2 {
		t.Fatalf("filter %v", f)
	}
	if !f.keep(SSEEvent{Type: EventRunCompleted}) || f.keep(SSEEvent{Type: EventRobotMoved}) {
		t.Fatal("filter mismatch")
	}
	if !parseFilter("").keep(SSEEvent{Type: "anything"}) {
		t.Fatal("empty filter keeps everything")
	}
}

func TestEventsStreamSSE(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream?types=run.completed", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	// first frame is the heartbeat written after subscribing
	if !sc.Scan() || sc.Text() != "event: heartbeat" {
		t.Fatalf("want heartbeat, got %q", sc.Text())
	}

	ar, err := http.Post(ts.URL+"/v1/assign", "application/json", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	ar.Body.Close()

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") && line != "event: heartbeat" {
			if line != "event: run.completed" {
				t.Fatalf("filtered stream leaked %q", line)
			}
			if !sc.Scan() || !strings.Contains(sc.Text(), `"totalCost":18`) {
				t.Fatalf("unexpected data %q", sc.Text())
			}
			return
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
}

func TestEventsWebSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/events/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(wsMessage{Type: "subscribe", Types: []string{EventRobotMoved, EventRunCompleted}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "ack" {
		t.Fatalf("want ack, got %+v (%v)", msg, err)
	}

	ar, err := http.Post(ts.URL+"/v1/assign", "application/json", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	ar.Body.Close()

	moved := 0
	for {
		var m wsMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		if m.Type != "event" || m.Event == nil {
			t.Fatalf("unexpected frame %+v", m)
		}
		switch m.Event.Type {
		case EventRobotMoved:
			moved++
		case EventRunCompleted:
			if moved != 2 {
				t.Fatalf("want 2 robot.moved before completion, got %d", moved)
			}
			return
		default:
			t.Fatalf("filtered type leaked: %s", m.Event.Type)
		}
	}
}

func TestEventsWebSocketPing(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Routes())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/events/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteJSON(wsMessage{Type: "ping"})
	var m wsMessage
	if err := conn.ReadJSON(&m); err != nil || m.Type != "pong" {
		t.Fatalf("want pong, got %+v (%v)", m, err)
	}
	_ = conn.WriteJSON(wsMessage{Type: "launch"})
	if err := conn.ReadJSON(&m); err != nil || m.Type != "error" {
		t.Fatalf("want error, got %+v (%v)", m, err)
	}
}
