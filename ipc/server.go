// Package ipc exposes the pipeline over a unix domain socket. One request
// per connection: the client writes a raw string, the server answers with
// a single JSON object and closes.
//
// Framing belongs here, not to the pipeline: a plain message is a query,
// "CACHE_CHECK:<query>" probes the cache without running the pipeline, and
// "EXECUTE:<plan json>" validates and runs a previously returned plan.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deskhand/command"
	"deskhand/pipeline"
	"deskhand/storage"
)

const (
	executePrefix    = "EXECUTE:"
	cacheCheckPrefix = "CACHE_CHECK:"

	// maxRequestBytes bounds one request; plans are small.
	maxRequestBytes = 1 << 20
)

// Server answers pipeline requests over a unix socket.
type Server struct {
	socketPath string
	pipe       *pipeline.Pipeline
	validator  *command.Validator
	executor   *command.Executor
	store      *storage.TranscriptStore // optional audit trail
	sessionID  string
	log        zerolog.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer wires the IPC surface. store may be nil to disable the audit
// trail; executor may be nil to reject EXECUTE requests.
func NewServer(socketPath string, pipe *pipeline.Pipeline, validator *command.Validator, executor *command.Executor, store *storage.TranscriptStore, log zerolog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		pipe:       pipe,
		validator:  validator,
		executor:   executor,
		store:      store,
		sessionID:  "session-" + time.Now().Format("20060102-150405"),
		log:        log,
	}
}

// Start binds the socket and serves until Close. A stale socket file from
// a previous run is removed.
func (s *Server) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to bind socket: %w", err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info().Str("socket", s.socketPath).Msg("ipc server listening")

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Close stops accepting, waits for in-flight requests, and removes the
// socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	os.Remove(s.socketPath)
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error().Err(err).Msg("accept failed")
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Minute))

	raw, err := io.ReadAll(io.LimitReader(conn, maxRequestBytes))
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read request")
		return
	}
	// The protocol requires clients to half-close their write side after
	// sending; the EOF terminates this read. A client that keeps writing
	// open stalls here until the deadline. Request does the half-close.

	response := s.dispatch(context.Background(), strings.TrimSpace(string(raw)))

	payload, err := json.Marshal(response)
	if err != nil {
		payload = []byte(`{"error": "failed to encode response"}`)
	}
	if _, err := conn.Write(payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

// dispatch routes one framed request to the pipeline, cache, or executor.
func (s *Server) dispatch(ctx context.Context, request string) any {
	switch {
	case request == "":
		return command.ErrorPlan("empty request")

	case strings.HasPrefix(request, cacheCheckPrefix):
		query := strings.TrimSpace(strings.TrimPrefix(request, cacheCheckPrefix))
		if plan := s.pipe.CacheCheck(query); plan != nil {
			return plan
		}
		return map[string]any{"cached": false}

	case strings.HasPrefix(request, executePrefix):
		return s.execute(ctx, strings.TrimPrefix(request, executePrefix))

	default:
		plan := s.pipe.Handle(ctx, request)
		s.audit(ctx, request, plan)
		return plan
	}
}

// ExecuteResult is the response to an EXECUTE request.
type ExecuteResult struct {
	Success bool            `json:"success"`
	Report  *command.Report `json:"report,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) execute(ctx context.Context, rawPlan string) ExecuteResult {
	if s.executor == nil {
		return ExecuteResult{Error: "execution not available"}
	}

	var plan command.Plan
	if err := json.Unmarshal([]byte(strings.TrimSpace(rawPlan)), &plan); err != nil {
		return ExecuteResult{Error: fmt.Sprintf("undecodable plan: %v", err)}
	}

	if s.validator != nil {
		if err := s.validator.Approve(ctx, &plan); err != nil {
			s.log.Warn().Err(err).Msg("plan rejected")
			return ExecuteResult{Error: fmt.Sprintf("plan rejected: %v", err)}
		}
	}

	report, err := s.executor.Run(ctx, &plan)
	if err != nil {
		return ExecuteResult{Report: &report, Error: err.Error()}
	}
	return ExecuteResult{Success: true, Report: &report}
}

func (s *Server) audit(ctx context.Context, query string, plan *command.Plan) {
	if s.store == nil || plan.IsError() {
		return
	}
	if err := s.store.RecordPlan(ctx, s.sessionID, uuid.NewString(), query, plan); err != nil {
		s.log.Warn().Err(err).Msg("failed to record plan")
	}
}

// Request sends one framed request to a running server and decodes the
// response into out. It is the client half of the protocol.
func Request(ctx context.Context, socketPath, request string, out any) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	payload, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("undecodable response: %w", err)
	}
	return nil
}
