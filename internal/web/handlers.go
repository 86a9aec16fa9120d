package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/sweeney/poe-sio/internal/poe"
)

// portJSON is the wire form of a single port.
type portJSON struct {
	Port  int    `json:"port"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type putPortRequest struct {
	State string `json:"state"`
}

func (s *Server) listPorts(res http.ResponseWriter, req *http.Request) {
	ports := s.ports.Ports()
	out := make([]portJSON, 0, len(ports))
	for _, p := range ports {
		state, err := s.ports.PortState(p)
		pj := portJSON{Port: p, State: string(state)}
		if err != nil {
			pj.Error = err.Error()
		}
		out = append(out, pj)
	}
	respond(res, out, http.StatusOK)
}

func (s *Server) getPort(res http.ResponseWriter, req *http.Request) {
	port, err := portParam(req)
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	state, err := s.ports.PortState(port)
	if err != nil {
		respond(res, err, statusFor(err))
		return
	}

	respond(res, portJSON{Port: port, State: string(state)}, http.StatusOK)
}

func (s *Server) putPort(res http.ResponseWriter, req *http.Request) {
	port, err := portParam(req)
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	var body putPortRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}
	state, err := poe.ParseState(body.State)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.ports.SetPortState(port, state); err != nil {
		s.log.WithError(err).WithField("port", port).Warn("set port state")
		respond(res, err, statusFor(err))
		return
	}
	s.log.WithField("port", port).Infof("port set %s via http", state)

	respond(res, portJSON{Port: port, State: string(state)}, http.StatusOK)
}

func portParam(req *http.Request) (int, error) {
	params := httprouter.ParamsFromContext(req.Context())
	raw := params.ByName("port")
	port, err := strconv.Atoi(raw)
	if err != nil || port < 0 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return port, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, poe.ErrUnknownPort):
		return http.StatusNotFound
	case errors.Is(err, poe.ErrInvalidState):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
