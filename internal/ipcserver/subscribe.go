package ipcserver

import (
	"bufio"
	"context"
	"encoding/json"

	"fleetd/internal/events"
	"fleetd/pkg/logging"
)

// runSubscriber takes over a connection once it asks to subscribe as a
// component's update-check voter: it is a dedicated one-subscriber-per-
// connection bridge onto events.Bus for the lifetime of the connection, the
// external-process analogue of internal/procrunner's Runner.SubscribeUpdateCheck.
func (s *Server) runSubscriber(ctx context.Context, reader *bufio.Reader, writeResponse func(Response), req Request) {
	var p subscribeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		writeResponse(Response{ID: req.ID, Error: err.Error()})
		return
	}
	writeResponse(Response{ID: req.ID})

	ch, unsubscribe := s.bus.Subscribe(p.Component)
	defer unsubscribe()

	logging.Info(subsystem, "%s subscribed to component-update pushes", p.Component)

	for {
		select {
		case <-ctx.Done():
			return
		case pushReq, open := <-ch:
			if !open {
				return
			}
			writeResponse(Response{Result: mustMarshal(map[string]interface{}{
				"method":       MethodPreComponentUpdate,
				"deploymentId": pushReq.Event.DeploymentID,
				"components":   pushReq.Event.Components,
			})})

			line, err := reader.ReadBytes('\n')
			if len(line) == 0 && err != nil {
				return
			}
			var vote events.DeferComponentUpdate
			var reply *events.DeferComponentUpdate
			if unmarshalErr := json.Unmarshal(line, &vote); unmarshalErr == nil && vote.RecheckAfter > 0 {
				vote.Component = p.Component
				reply = &vote
			}
			select {
			case pushReq.Reply <- reply:
			default:
			}
			if err != nil {
				return
			}
		}
	}
}
