package ipcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/activation"

	"fleetd/internal/events"
	"fleetd/pkg/logging"
)

const subsystem = "ipcserver"

// Server dispatches framed requests from Listen's connections to a Backend,
// and hosts the component-update-deferral subscription bridge against bus.
type Server struct {
	backend Backend
	bus     *events.Bus
}

// New constructs a Server.
func New(backend Backend, bus *events.Bus) *Server {
	return &Server{backend: backend, bus: bus}
}

// Listen opens the local IPC socket: an inherited systemd activation
// socket if present (LISTEN_FDS), else a fresh Unix listener at
// socketPath, removing a stale socket file left by an unclean shutdown
// first.
func Listen(socketPath string) (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err == nil && len(listeners) > 0 && listeners[0] != nil {
		logging.Info(subsystem, "using systemd-activated socket")
		return listeners[0], nil
	}

	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	logging.Info(subsystem, "listening on %s", socketPath)
	return ln, nil
}

// Serve accepts connections from ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	encMu := &sync.Mutex{}
	enc := json.NewEncoder(conn)

	writeResponse := func(resp Response) {
		encMu.Lock()
		defer encMu.Unlock()
		if err := enc.Encode(resp); err != nil {
			logging.Warn(subsystem, "write response: %v", err)
		}
	}

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(Response{Error: "malformed request: " + err.Error()})
			if err != nil {
				return
			}
			continue
		}

		if req.Method == MethodSubscribeComponentUpdates {
			s.runSubscriber(ctx, reader, writeResponse, req)
			return
		}

		result, rpcErr := s.dispatch(ctx, req)
		resp := Response{ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr.Error()
		} else {
			resp.Result = result
		}
		writeResponse(resp)

		if err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) (json.RawMessage, error) {
	switch req.Method {
	case MethodListComponents:
		list, err := s.backend.ListComponents(ctx)
		if err != nil {
			return nil, err
		}
		return mustMarshal(list), nil

	case MethodGetComponentDetails:
		var p componentNameParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		details, err := s.backend.GetComponentDetails(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		return mustMarshal(details), nil

	case MethodRestartComponent:
		var p componentNameParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, s.backend.RestartComponent(ctx, p.Name)

	case MethodStopComponent:
		var p componentNameParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, s.backend.StopComponent(ctx, p.Name)

	case MethodUpdateRecipesAndArtifacts:
		return nil, s.backend.UpdateRecipesAndArtifacts(ctx)

	case MethodCreateLocalDeployment:
		var doc deploymentDocParams
		if err := json.Unmarshal(req.Params, &doc); err != nil {
			return nil, err
		}
		id, err := s.backend.CreateLocalDeployment(ctx, doc.Document)
		if err != nil {
			return nil, err
		}
		return mustMarshal(map[string]string{"deploymentId": id}), nil

	case MethodGetLocalDeploymentStatus:
		var p deploymentIDParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		result, err := s.backend.GetLocalDeploymentStatus(ctx, p.DeploymentID)
		if err != nil {
			return nil, err
		}
		return mustMarshal(result), nil

	case MethodListLocalDeployments:
		return mustMarshal(s.backend.ListLocalDeployments(ctx)), nil

	default:
		return nil, unknownMethodError(req.Method)
	}
}
