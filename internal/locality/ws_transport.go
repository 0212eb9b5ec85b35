package locality

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wireMessage is the JSON envelope exchanged over a WSTransport
// connection; reqID pairs a reply back to the Send call awaiting it.
type wireMessage struct {
	ReqID   string `json:"req_id"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Tag     string `json:"tag"`
	Payload []byte `json:"payload"`
	IsReply bool   `json:"is_reply"`
	Err     string `json:"err,omitempty"`
}

// WSTransport is the cross-process realization of Transport, one
// websocket connection per peer locality, adapted from the teacher's
// internal/network/websocket.go connection-pool pattern
// (WebSocketConn/WebSocketServer with a mutex-guarded connection map
// and a background reader goroutine per connection). Each locality
// runs a small websocket server for inbound messages; outbound messages
// go over connections opened beforehand with Dial.
type WSTransport struct {
	self     int
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	conns    map[int]*websocket.Conn
	handlers map[int]map[string]Handler
	pending  map[string]chan Reply
}

// NewWSTransport starts a websocket listener for `self` on addr (e.g.
// ":9001") and returns a transport whose peers are connected with Dial.
func NewWSTransport(self int, addr string) (*WSTransport, error) {
	t := &WSTransport{
		self:     self,
		conns:    make(map[int]*websocket.Conn),
		handlers: make(map[int]map[string]Handler),
		pending:  make(map[string]chan Reply),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/locality", func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go t.readLoop(conn)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return t, nil
}

func (t *WSTransport) RegisterHandler(locality int, tag string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.handlers[locality]
	if !ok {
		m = make(map[string]Handler)
		t.handlers[locality] = m
	}
	m[tag] = h
}

// Dial registers the peer's endpoint so future Sends to it succeed.
func (t *WSTransport) Dial(peer int, url string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("locality-error: dialing locality %d: %w", peer, err)
	}
	t.mu.Lock()
	t.conns[peer] = conn
	t.mu.Unlock()
	go t.readLoop(conn)
	return nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var wm wireMessage
		if err := json.Unmarshal(data, &wm); err != nil {
			continue
		}
		if wm.IsReply {
			t.mu.RLock()
			ch, ok := t.pending[wm.ReqID]
			t.mu.RUnlock()
			if ok {
				var err error
				if wm.Err != "" {
					err = fmt.Errorf("%s", wm.Err)
				}
				ch <- Reply{Payload: wm.Payload, Err: err}
				close(ch)
				t.mu.Lock()
				delete(t.pending, wm.ReqID)
				t.mu.Unlock()
			}
			continue
		}
		t.mu.RLock()
		h, ok := t.handlers[wm.To][wm.Tag]
		t.mu.RUnlock()
		reply := Reply{Err: fmt.Errorf("locality-error: no handler for tag %q", wm.Tag)}
		if ok {
			reply = h(context.Background(), Message{From: wm.From, To: wm.To, Tag: wm.Tag, Payload: wm.Payload})
		}
		resp := wireMessage{ReqID: wm.ReqID, From: wm.To, To: wm.From, IsReply: true, Payload: reply.Payload}
		if reply.Err != nil {
			resp.Err = reply.Err.Error()
		}
		out, _ := json.Marshal(resp)
		conn.WriteMessage(websocket.TextMessage, out)
	}
}

func (t *WSTransport) Send(ctx context.Context, m Message) <-chan Reply {
	out := make(chan Reply, 1)
	t.mu.RLock()
	conn, ok := t.conns[m.To]
	t.mu.RUnlock()
	if !ok {
		out <- Reply{Err: fmt.Errorf("locality-error: no connection to locality %d", m.To)}
		close(out)
		return out
	}
	reqID := uuid.NewString()
	ch := make(chan Reply, 1)
	t.mu.Lock()
	t.pending[reqID] = ch
	t.mu.Unlock()

	wm := wireMessage{ReqID: reqID, From: m.From, To: m.To, Tag: m.Tag, Payload: m.Payload}
	data, err := json.Marshal(wm)
	if err != nil {
		out <- Reply{Err: err}
		close(out)
		return out
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		out <- Reply{Err: err}
		close(out)
		return out
	}
	go func() {
		select {
		case r := <-ch:
			out <- r
		case <-ctx.Done():
			out <- Reply{Err: ctx.Err()}
		case <-time.After(30 * time.Second):
			out <- Reply{Err: fmt.Errorf("locality-error: timed out waiting for reply from locality %d", m.To)}
		}
		close(out)
	}()
	return out
}
