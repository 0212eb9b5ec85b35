package locality

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// envelope is the wire frame RemoteTransport exchanges over a
// websocket connection: either a request carrying a Message, or the
// matching reply, correlated by ID. Adapted from the teacher's
// internal/network.WebSocketConn send/receive pair, generalized into a
// small request/reply protocol since Transport.Send needs a reply
// future rather than a bare fire-and-forget send.
type envelope struct {
	ID      string `json:"id"`
	Reply   bool   `json:"reply"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Tag     string `json:"tag"`
	Payload []byte `json:"payload"`
	Err     string `json:"err,omitempty"`
}

// RemoteTransport is a real, cross-process Transport: each locality
// runs a websocket server (github.com/gorilla/websocket) on its own
// Registry endpoint and dials its peers lazily on first Send, the same
// connect-once-then-reuse pattern as the teacher's
// internal/network.WebSocketConn, with github.com/google/uuid minting
// the correlation id each request/reply pair shares. Unlike
// LocalTransport, RegisterHandler here only installs handlers for this
// process's own Self locality — inbound requests for any other
// locality id are a configuration error, since this process cannot
// answer on another locality's behalf.
type RemoteTransport struct {
	self int
	reg  *Registry

	mu       sync.Mutex
	conns    map[int]*websocket.Conn
	handlers map[string]Handler
	pending  map[string]chan Reply

	server *http.Server
}

// NewRemoteTransport starts a websocket listener on self's registry
// endpoint and returns a Transport ready to Send to and receive from
// its peers. The caller is responsible for eventually calling Close.
func NewRemoteTransport(self int, reg *Registry) (*RemoteTransport, error) {
	addr, ok := reg.Endpoints[self]
	if !ok || addr == "" {
		return nil, fmt.Errorf("locality-error: locality %d has no listen endpoint", self)
	}

	t := &RemoteTransport{
		self:     self,
		reg:      reg,
		conns:    make(map[int]*websocket.Conn),
		handlers: make(map[string]Handler),
		pending:  make(map[string]chan Reply),
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go t.serveConn(conn)
	})
	t.server = &http.Server{Addr: listenAddr(addr), Handler: mux}
	ln, err := newListener(t.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("locality-error: listening on %s: %w", addr, err)
	}
	go t.server.Serve(ln)
	return t, nil
}

func (t *RemoteTransport) RegisterHandler(locality int, tag string, h Handler) {
	if locality != t.self {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[tag] = h
}

func (t *RemoteTransport) Send(ctx context.Context, m Message) <-chan Reply {
	out := make(chan Reply, 1)

	conn, err := t.dial(m.To)
	if err != nil {
		out <- Reply{Err: err}
		close(out)
		return out
	}

	id := uuid.NewString()
	reply := make(chan Reply, 1)
	t.mu.Lock()
	t.pending[id] = reply
	t.mu.Unlock()

	env := envelope{ID: id, From: t.self, To: m.To, Tag: m.Tag, Payload: m.Payload}
	if err := t.writeEnvelope(conn, env); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		out <- Reply{Err: fmt.Errorf("locality-error: sending to locality %d: %w", m.To, err)}
		close(out)
		return out
	}

	go func() {
		select {
		case r := <-reply:
			out <- r
		case <-ctx.Done():
			out <- Reply{Err: ctx.Err()}
		}
		close(out)
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()
	return out
}

// dial returns an existing connection to locality, or establishes one.
func (t *RemoteTransport) dial(locality int) (*websocket.Conn, error) {
	t.mu.Lock()
	if c, ok := t.conns[locality]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	addr, ok := t.reg.Endpoints[locality]
	if !ok {
		return nil, fmt.Errorf("locality-error: locality %d is not a participant", locality)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(addr+"/ws", nil)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.conns[locality] = conn
	t.mu.Unlock()
	go t.serveConn(conn)
	return conn, nil
}

// serveConn reads envelopes off conn until it closes, dispatching
// requests to the locally registered handler and replies to their
// pending channel.
func (t *RemoteTransport) serveConn(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Reply {
			t.mu.Lock()
			ch, ok := t.pending[env.ID]
			t.mu.Unlock()
			if ok {
				r := Reply{Payload: env.Payload}
				if env.Err != "" {
					r.Err = fmt.Errorf("%s", env.Err)
				}
				ch <- r
			}
			continue
		}

		t.mu.Lock()
		h, ok := t.handlers[env.Tag]
		t.mu.Unlock()

		go func(env envelope, conn *websocket.Conn) {
			var r Reply
			if !ok {
				r = Reply{Err: fmt.Errorf("locality-error: no handler for tag %q on locality %d", env.Tag, t.self)}
			} else {
				r = h(context.Background(), Message{From: env.From, To: env.To, Tag: env.Tag, Payload: env.Payload})
			}
			reply := envelope{ID: env.ID, Reply: true, From: t.self, To: env.From, Payload: r.Payload}
			if r.Err != nil {
				reply.Err = r.Err.Error()
			}
			_ = t.writeEnvelope(conn, reply)
		}(env, conn)
	}
}

func (t *RemoteTransport) writeEnvelope(conn *websocket.Conn, env envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, b)
}

// listenAddr extracts the host:port a local http.Server should bind to
// from a registry endpoint, which may be a bare "host:port" or a full
// "ws://host:port" URL.
func listenAddr(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Close shuts down the listener and every peer connection.
func (t *RemoteTransport) Close() error {
	t.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
