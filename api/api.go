// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package api exposes the public vote HTTP endpoints.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// ApiConfig describes the API server configuration
type ApiConfig struct {
	ListenAddress string
}

// Api is the public HTTP server for vote intake and vote status reads
type Api struct {
	config     ApiConfig
	logger     *slog.Logger
	gateway    VoteGateway
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance
func New(
	cfg ApiConfig,
	gateway VoteGateway,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	return &Api{
		config:  cfg,
		logger:  logger,
		gateway: gateway,
	}
}

// Start starts the HTTP server in a background goroutine
func (a *Api) Start(
	ctx context.Context,
) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc(
		"POST /servers/{id}/vote",
		a.handleVote,
	)
	mux.HandleFunc(
		"GET /servers/{id}/can-vote",
		a.handleCanVote,
	)
	mux.HandleFunc(
		"GET /servers/{id}/votes",
		a.handleVoteCount,
	)
	mux.HandleFunc(
		"GET /servers/{id}/top-voters",
		a.handleTopVoters,
	)

	a.httpServer = &http.Server{
		Addr:         a.config.ListenAddress,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	server := a.httpServer
	a.mu.Unlock()

	a.logger.Info(
		"listening for HTTP requests",
		"address", a.config.ListenAddress,
	)
	go func() {
		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"HTTP server error",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
