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

package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/blinklabs-io/quoll/gateway"
)

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes a generic error response
func writeError(
	w http.ResponseWriter,
	status int,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
	})
}

// clientIP extracts the caller's IP from proxy headers, falling back to the
// connection's remote address
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First entry is the original client
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleHealth handles GET /health
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Healthy: true,
	})
}

// handleVote handles POST /servers/{id}/vote
func (a *Api) handleVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	targetID := r.PathValue("id")
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"invalid request body",
		)
		return
	}
	outcome, err := a.gateway.SubmitVote(
		r.Context(),
		targetID,
		clientIP(r),
		req.VoterName,
	)
	if err != nil {
		var cooldownErr gateway.CooldownError
		switch {
		case errors.As(err, &cooldownErr):
			writeJSON(w, http.StatusTooManyRequests, CooldownResponse{
				Error:     cooldownErr.Error(),
				Cooldown:  true,
				HoursLeft: cooldownErr.HoursLeft(),
			})
		case errors.Is(err, gateway.ErrInvalidVoter):
			writeError(
				w,
				http.StatusBadRequest,
				"invalid voter name",
			)
		case errors.Is(err, gateway.ErrInvalidVoterIP):
			writeError(
				w,
				http.StatusBadRequest,
				"voter address is required",
			)
		case errors.Is(err, gateway.ErrTargetNotFound):
			writeError(
				w,
				http.StatusNotFound,
				"server not found",
			)
		default:
			a.logger.Error(
				"failed to record vote",
				"target", targetID,
				"error", err,
			)
			writeError(
				w,
				http.StatusInternalServerError,
				"failed to record vote",
			)
		}
		return
	}
	writeJSON(w, http.StatusCreated, VoteResponse{
		Success:        true,
		VoteCount:      outcome.VoteCount,
		DeliveryStatus: outcome.DeliveryStatus,
	})
}

// handleCanVote handles GET /servers/{id}/can-vote
func (a *Api) handleCanVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	targetID := r.PathValue("id")
	canVote, timeLeft, err := a.gateway.CanVote(
		r.Context(),
		targetID,
		clientIP(r),
	)
	if err != nil {
		if errors.Is(err, gateway.ErrTargetNotFound) {
			writeError(
				w,
				http.StatusNotFound,
				"server not found",
			)
			return
		}
		a.logger.Error(
			"failed to check vote status",
			"target", targetID,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"failed to check vote status",
		)
		return
	}
	writeJSON(w, http.StatusOK, CanVoteResponse{
		CanVote:    canVote,
		TimeLeftMs: timeLeft.Milliseconds(),
	})
}

// handleVoteCount handles GET /servers/{id}/votes
func (a *Api) handleVoteCount(
	w http.ResponseWriter,
	r *http.Request,
) {
	targetID := r.PathValue("id")
	count, err := a.gateway.VoteCount(r.Context(), targetID)
	if err != nil {
		if errors.Is(err, gateway.ErrTargetNotFound) {
			writeError(
				w,
				http.StatusNotFound,
				"server not found",
			)
			return
		}
		a.logger.Error(
			"failed to fetch vote count",
			"target", targetID,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"failed to fetch vote count",
		)
		return
	}
	writeJSON(w, http.StatusOK, VoteCountResponse{
		VoteCount: count,
	})
}

// handleTopVoters handles GET /servers/{id}/top-voters
func (a *Api) handleTopVoters(
	w http.ResponseWriter,
	r *http.Request,
) {
	targetID := r.PathValue("id")
	topVoters, err := a.gateway.TopVoters(r.Context(), targetID)
	if err != nil {
		if errors.Is(err, gateway.ErrTargetNotFound) {
			writeError(
				w,
				http.StatusNotFound,
				"server not found",
			)
			return
		}
		a.logger.Error(
			"failed to fetch top voters",
			"target", targetID,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"failed to fetch top voters",
		)
		return
	}
	ret := make([]TopVoterResponse, 0, len(topVoters))
	for _, tv := range topVoters {
		ret = append(ret, TopVoterResponse{
			VoterName: tv.VoterName,
			VoteCount: tv.VoteCount,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}
