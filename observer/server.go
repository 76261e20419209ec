// Package observer serves a stage to an external authoring UI over HTTP and
// a websocket. The UI receives STATE pushes and sends edit and playback
// commands, which are validated against an embedded JSON schema before they
// touch the stage.
package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phanxgames/blockstage"
)

const (
	defaultPollInterval = 50 * time.Millisecond
	writeTimeout        = 5 * time.Second
	readTimeout         = 60 * time.Second
)

// Server exposes one stage.
type Server struct {
	stage *blockstage.Stage
	log   *log.Logger

	// PollInterval is how often a connection checks for state changes.
	PollInterval time.Duration
	// AllowRemote accepts clients from non-loopback addresses.
	AllowRemote bool

	upgrader websocket.Upgrader
}

// NewServer creates a server for st. A nil logger logs to stderr.
func NewServer(st *blockstage.Stage, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[observer] ", log.LstdFlags)
	}
	return &Server{
		stage:        st,
		log:          logger,
		PollInterval: defaultPollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns a mux serving /v1/state and /v1/ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/state", s.StateHandler())
	mux.HandleFunc("/v1/ws", s.WSHandler())
	return mux
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

// StateHandler serves the current snapshot as JSON.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.stage.Snapshot())
	}
}

// WSHandler upgrades to a websocket. The connection gets a STATE message
// straight away and another whenever the store revision or the playing
// flag changes. Every command read from it is answered with ACK or ERROR.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		replies := make(chan Reply, 64)
		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.writeLoop(ctx, conn, replies)
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			reply := s.handle(msg)
			select {
			case replies <- reply:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case err := <-writeErr:
			if err != nil && err != context.Canceled {
				s.log.Printf("ws write: %v", err)
			}
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// writeLoop owns every write on conn.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, replies <-chan Reply) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		sent    bool
		lastRev uint64
		playing bool
	)
	pushState := func(force bool) error {
		rev := s.stage.Store.Revision()
		snap := s.stage.Snapshot()
		if !force && sent && rev == lastRev && snap.Execution.IsPlaying == playing {
			return nil
		}
		sent, lastRev, playing = true, rev, snap.Execution.IsPlaying
		return writeJSON(conn, StateMsg{
			Type:            TypeState,
			ProtocolVersion: Version,
			Revision:        rev,
			State:           snap,
		})
	}

	if err := pushState(true); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rep := <-replies:
			if err := writeJSON(conn, rep); err != nil {
				return err
			}
		case <-ticker.C:
			if err := pushState(false); err != nil {
				return err
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// handle validates and applies one message.
func (s *Server) handle(msg []byte) Reply {
	cmd, err := DecodeCommand(msg)
	if err != nil {
		return Reply{Type: TypeError, ID: peekID(msg), Error: err.Error()}
	}
	data, err := s.Apply(cmd)
	if err != nil {
		s.log.Printf("%s: %v", cmd.Type, err)
		return Reply{Type: TypeError, ID: cmd.ID, Error: err.Error()}
	}
	return Reply{Type: TypeAck, ID: cmd.ID, Data: data}
}

// peekID pulls the id out of a message that failed validation so the error
// can still be matched to its request.
func peekID(msg []byte) string {
	var v struct {
		ID any `json:"id"`
	}
	if json.Unmarshal(msg, &v) != nil {
		return ""
	}
	id, _ := v.ID.(string)
	return id
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
