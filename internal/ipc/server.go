package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"srmsync/internal/api"
	"srmsync/internal/daemon"
	"srmsync/internal/history"
	"srmsync/internal/logging"
	"srmsync/internal/workflow"
)

const defaultHistoryLimit = 20

// Backend is the daemon surface exposed over IPC.
type Backend interface {
	StatusPayload(ctx context.Context) api.DaemonStatus
	SyncNow(ctx context.Context, trigger string) workflow.Report
	RequestSync(trigger string) bool
	OpenURI(ctx context.Context, uri string)
	Launch(ctx context.Context, gameID string)
	HandleGameEvent(event daemon.GameEvent, gameID string) error
	Games(ctx context.Context, query string) ([]api.Game, error)
	Sessions(ctx context.Context, limit int) ([]history.Session, error)
	TestNotification(ctx context.Context) (bool, string, error)
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown is
// invoked when a client requests the daemon exit; it may be nil.
func NewServer(ctx context.Context, path string, backend Backend, shutdown func(), logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires a daemon backend")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{backend: backend, shutdown: shutdown, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun srmsync stop"),
		)
	}
}

type service struct {
	backend  Backend
	shutdown func()
	logger   *slog.Logger
	ctx      context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.backend.StatusPayload(s.ctx)
	return nil
}

func (s *service) Sync(req SyncRequest, resp *SyncResponse) error {
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		trigger = "ipc"
	}
	if !req.Wait {
		resp.Queued = s.backend.RequestSync(trigger)
		return nil
	}
	s.logger.Debug("sync requested", logging.String("trigger", trigger))
	session := api.FromReport(s.backend.SyncNow(s.ctx, trigger))
	resp.Session = &session
	return nil
}

func (s *service) OpenURI(req OpenURIRequest, resp *OpenURIResponse) error {
	switch {
	case strings.TrimSpace(req.URI) != "":
		s.backend.OpenURI(s.ctx, req.URI)
	case strings.TrimSpace(req.GameID) != "":
		s.backend.Launch(s.ctx, req.GameID)
	default:
		return errors.New("uri or game id is required")
	}
	resp.Accepted = true
	return nil
}

func (s *service) GameEvent(req GameEventRequest, resp *GameEventResponse) error {
	if err := s.backend.HandleGameEvent(daemon.GameEvent(req.Event), req.GameID); err != nil {
		return err
	}
	resp.Accepted = true
	return nil
}

func (s *service) Games(req GamesRequest, resp *GamesResponse) error {
	games, err := s.backend.Games(s.ctx, req.Query)
	if err != nil {
		return err
	}
	resp.Games = games
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	sessions, err := s.backend.Sessions(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Sessions = api.FromSessions(sessions)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.backend.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	if s.shutdown == nil {
		return errors.New("shutdown not supported")
	}
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	s.shutdown()
	resp.Stopping = true
	return nil
}
