// Package tap serves a local inspector stream: every sync message decoded
// from the left page is fanned out as a text frame to any websocket client
// on /events. It exists for debugging a pairing, not for the sync path
// itself; a slow or stuck inspector is dropped rather than ever delaying
// capture.
package tap

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Config configures the inspector server.
type Config struct {
	ListenAddr   string
	Logger       *log.Logger
	BufferSize   int           // per-subscriber queue, messages
	WriteTimeout time.Duration // per websocket frame
}

// Server is the inspector endpoint. Publish never blocks.
type Server struct {
	cfg    Config
	logger *log.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan string
}

// NewServer creates an inspector server with teacher-standard defaults.
func NewServer(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:39411"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Publish queues line for every connected inspector. A subscriber whose
// queue is full is disconnected; losing an inspector is acceptable,
// back-pressure on the capture path is not.
func (s *Server) Publish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.ch <- line:
		default:
			delete(s.subs, sub)
			close(sub.ch)
		}
	}
}

func (s *Server) subscribe() *subscriber {
	sub := &subscriber{ch: make(chan string, s.cfg.BufferSize)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *Server) drop(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		close(sub.ch)
	}
}

func (s *Server) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("tap: inspector listening on %s", s.cfg.ListenAddr)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	case "/events":
		s.handleEvents(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		s.logger.Printf("tap: websocket accept failed: %v", err)
		return
	}

	sub := s.subscribe()
	defer s.drop(sub)
	s.logger.Printf("tap: inspector connected: %s", r.RemoteAddr)

	ctx := r.Context()
	var closeStatus websocket.StatusCode = websocket.StatusNormalClosure
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(closeStatus, "")
			return
		case line, ok := <-sub.ch:
			if !ok {
				// Dropped by Publish for falling behind.
				_ = conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, []byte(line))
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
					s.logger.Printf("tap: inspector write failed: %v", err)
					closeStatus = websocket.StatusInternalError
				}
				_ = conn.Close(closeStatus, "")
				return
			}
		}
	}
}
