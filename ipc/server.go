package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"localwhisper/backend"
	"localwhisper/events"
	"localwhisper/listener"
	"localwhisper/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 32 * 1024,
	// Only local front ends connect; browsers send an Origin and are refused.
	CheckOrigin: func(r *http.Request) bool { return r.Header.Get("Origin") == "" },
}

// Server exposes a backend over WebSocket. Every connected peer receives every
// push event; calls run concurrently and answer in completion order.
type Server struct {
	src      events.Source
	handlers map[string]handler

	mu    sync.Mutex
	peers map[*peer]struct{}

	httpSrv *http.Server
	url     string
}

func NewServer(cmds backend.Commands, src events.Source) *Server {
	return &Server{
		src:      src,
		handlers: handlers(cmds),
		peers:    make(map[*peer]struct{}),
	}
}

// Listen serves on addr in the background and returns the ws:// URL.
func (s *Server) Listen(ctx context.Context, addr string) (string, error) {
	if s.httpSrv != nil {
		return "", errors.New("ipc: already listening")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("ipc: listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	s.httpSrv = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.url = "ws://" + ln.Addr().String() + Path
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("ipc server: %v", err)
		}
	}()
	log.Infof("ipc listening on %s", s.url)
	return s.url, nil
}

func (s *Server) URL() string { return s.url }

// Peers is the number of connected front ends.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close disconnects every peer, releasing their listener leases, and stops
// the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("ipc upgrade: %v", err)
		return
	}
	p := &peer{
		srv:    s,
		conn:   conn,
		addr:   r.RemoteAddr,
		outbox: make(chan Message, outboxSize),
		done:   make(chan struct{}),
		leases: make(map[string]listener.Release),
	}
	ctx, cancel := context.WithCancel(r.Context())
	p.cancel = cancel

	for _, name := range events.Names {
		name := name
		sub, err := s.src.Listen(name, func(payload json.RawMessage) {
			p.send(Message{Type: TypeEvent, Event: name, Payload: payload})
		})
		if err != nil {
			log.Peer(p.addr, "rejected", err)
			p.close()
			return
		}
		p.subs = append(p.subs, sub)
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	log.Peer(p.addr, "connected", nil)

	go p.writeLoop()
	err = p.readLoop(ctx)
	p.close()

	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	log.Peer(p.addr, "disconnected", err)
}

// peer is one connected front end.
type peer struct {
	srv    *Server
	conn   *websocket.Conn
	addr   string
	cancel context.CancelFunc
	subs   []*events.Subscription

	outbox    chan Message
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	leases map[string]listener.Release
	calls  sync.WaitGroup
}

func (p *peer) readLoop(ctx context.Context) error {
	p.conn.SetReadLimit(maxReadMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(readDeadline))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	for {
		var m Message
		if err := p.conn.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		p.conn.SetReadDeadline(time.Now().Add(readDeadline))
		if m.Type != TypeCall {
			continue
		}
		p.calls.Add(1)
		go func() {
			defer p.calls.Done()
			p.send(p.dispatch(ctx, m))
		}()
	}
}

func (p *peer) dispatch(ctx context.Context, m Message) Message {
	res := Message{Type: TypeResult, ID: m.ID}
	h, ok := p.srv.handlers[m.Method]
	if !ok {
		res.Error = toWire(fmt.Errorf("%w: %s", ErrUnknownMethod, m.Method))
		return res
	}
	out, err := h(ctx, p, m.Params)
	if err != nil {
		res.Error = toWire(err)
		return res
	}
	if out != nil {
		raw, err := json.Marshal(out)
		if err != nil {
			res.Error = toWire(err)
			return res
		}
		res.Result = raw
	}
	return res
}

// send queues m for the writer. A peer that falls a full outbox behind is
// disconnected rather than allowed to stall the emitter.
func (p *peer) send(m Message) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.outbox <- m:
	case <-p.done:
	default:
		log.Peer(p.addr, "overflow", errors.New("outbox full"))
		go p.close()
	}
}

func (p *peer) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-p.done:
			return
		case m := <-p.outbox:
			p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := p.conn.WriteJSON(m); err != nil {
				go p.close()
				return
			}
		case <-ping.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				go p.close()
				return
			}
		}
	}
}

func (p *peer) lease(release listener.Release) string {
	token := uuid.NewString()
	p.mu.Lock()
	p.leases[token] = release
	p.mu.Unlock()
	return token
}

func (p *peer) unlease(token string) {
	p.mu.Lock()
	release := p.leases[token]
	delete(p.leases, token)
	p.mu.Unlock()
	if release != nil {
		release()
	}
}

// close tears the peer down once: event subscriptions, in-flight calls, then
// any listener lease the front end never gave back.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		for _, sub := range p.subs {
			sub.Cancel()
		}
		if p.cancel != nil {
			p.cancel()
		}
		close(p.done)
		p.conn.Close()
		p.calls.Wait()

		p.mu.Lock()
		leases := p.leases
		p.leases = map[string]listener.Release{}
		p.mu.Unlock()
		for _, release := range leases {
			release()
		}
	})
}
