package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"showseed/internal/daemon"
	"showseed/internal/jobs"
	"showseed/internal/logging"
	"showseed/internal/logs"
	"showseed/internal/services"
	"showseed/internal/shows"
)

// ServiceName is the net/rpc receiver name.
const ServiceName = "Showseed"

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

// ShowLookup resolves show ids named in add requests.
type ShowLookup interface {
	Lookup(id int) (shows.Show, error)
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, catalog ShowLookup, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
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
	srv := &service{daemon: d, shows: catalog, logger: logger, ctx: serverCtx}
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
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
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

// Close stops the server and removes the socket file. In-flight calls are
// allowed to finish.
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
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	shows  ShowLookup
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status()
	*resp = StatusResponse{
		Running:       st.Running,
		PID:           st.PID,
		StartedAt:     st.StartedAt,
		EngineRunning: st.EngineRunning,
		JobCount:      st.JobCount,
		Phases:        st.Phases,
		LockPath:      st.LockPath,
		SnapshotPath:  st.SnapshotPath,
		LogPath:       st.LogPath,
		Preflight:     st.Preflight,
	}
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	views := s.daemon.ListJobs()
	if len(req.Phases) == 0 {
		resp.Jobs = views
		return nil
	}
	resp.Jobs = make([]JobView, 0, len(views))
	for _, v := range views {
		if slices.ContainsFunc(req.Phases, func(p string) bool { return strings.EqualFold(p, string(v.Phase)) }) {
			resp.Jobs = append(resp.Jobs, v)
		}
	}
	return nil
}

func (s *service) JobAdd(req JobAddRequest, resp *JobAddResponse) error {
	episodes, err := s.resolveEpisodes(req.Episodes)
	if err != nil {
		return err
	}
	ctx := services.WithRequestID(s.ctx, fmt.Sprintf("ipc-%d", time.Now().UnixNano()))
	view, err := s.daemon.AddJob(ctx, daemon.AddRequest{
		Descriptor:    req.Descriptor,
		Key:           req.Key,
		PostProcessed: req.PostProcessed,
		Episodes:      episodes,
	})
	if err != nil {
		return err
	}
	resp.Job = view
	s.logger.Info("job added via IPC",
		logging.String(logging.FieldEventType, "ipc_job_add"),
		logging.String(logging.FieldJobKey, view.Key),
		logging.String("name", view.Name))
	return nil
}

func (s *service) resolveEpisodes(refs []EpisodeRef) ([]jobs.Episode, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]jobs.Episode, 0, len(refs))
	for _, ref := range refs {
		ep := jobs.Episode{ShowID: ref.ShowID, Season: ref.Season, Number: ref.Episode}
		if s.shows != nil {
			show, err := s.shows.Lookup(ref.ShowID)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "ipc", "add", fmt.Sprintf("show %d", ref.ShowID), err)
			}
			ep.ShowName = show.Name
		}
		out = append(out, ep)
	}
	return out, nil
}

func (s *service) JobRemove(req JobRemoveRequest, resp *JobRemoveResponse) error {
	if err := s.daemon.RemoveJob(s.ctx, req.Key, req.DeleteFiles); err != nil {
		return err
	}
	resp.Removed = true
	s.logger.Info("job removed via IPC",
		logging.String(logging.FieldEventType, "ipc_job_remove"),
		logging.String(logging.FieldJobKey, req.Key),
		logging.Bool("delete_files", req.DeleteFiles))
	return nil
}

func (s *service) SetLimits(req SetLimitsRequest, resp *SetLimitsResponse) error {
	resp.Applied = s.daemon.SetLimits(req.DownloadKBps, req.UploadKBps)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		JobKey: strings.TrimSpace(req.JobKey),
	})
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
