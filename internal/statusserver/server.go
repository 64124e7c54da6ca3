// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package statusserver exposes a minimal, read-only HTTP endpoint an
// operator can poll to see ASC's current state: pending package count and
// the active snapshot config. It deliberately carries no mutating routes —
// config changes go through the config file, not this endpoint.
package statusserver

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pborman/uuid"

	"github.com/lumoslabs/accounts-snapshot-coordinator/pending"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

// Server is the read-only status HTTP server.
type Server struct {
	Pending    *pending.Packages
	Controller *snapshotconfig.Controller
	router     *httprouter.Router
}

// New builds a Server with its routes registered, ready for http.ListenAndServe.
func New(p *pending.Packages, c *snapshotconfig.Controller) *Server {
	s := &Server{Pending: p, Controller: c, router: httprouter.New()}
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/healthz", s.handleHealthz)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusResponse struct {
	RequestID                 string `json:"request_id"`
	PendingPackages           int    `json:"pending_packages"`
	SnapshotGenerationEnabled bool   `json:"snapshot_generation_enabled"`
	QueueCapacity             int    `json:"queue_capacity"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cfg := s.Controller.Config()
	resp := statusResponse{
		RequestID:                 uuid.New(),
		PendingPackages:           s.Pending.Len(),
		SnapshotGenerationEnabled: cfg.SnapshotGenerationEnabled,
		QueueCapacity:             cfg.QueueCapacity,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
