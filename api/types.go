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

// VoteRequest is the POST /servers/{id}/vote request body
type VoteRequest struct {
	VoterName string `json:"voterName"`
}

// VoteResponse is returned on vote acceptance
type VoteResponse struct {
	Success        bool   `json:"success"`
	VoteCount      uint64 `json:"voteCount"`
	DeliveryStatus string `json:"deliveryStatus"`
}

// CooldownResponse is returned when a vote is rate-limited
type CooldownResponse struct {
	Error     string `json:"error"`
	Cooldown  bool   `json:"cooldown"`
	HoursLeft int    `json:"hoursLeft"`
}

// CanVoteResponse is the GET /servers/{id}/can-vote response
type CanVoteResponse struct {
	CanVote    bool  `json:"canVote"`
	TimeLeftMs int64 `json:"timeLeftMs"`
}

// VoteCountResponse is the GET /servers/{id}/votes response
type VoteCountResponse struct {
	VoteCount uint64 `json:"voteCount"`
}

// TopVoterResponse is a single entry in the GET /servers/{id}/top-voters
// response
type TopVoterResponse struct {
	VoterName string `json:"voterName"`
	VoteCount uint64 `json:"voteCount"`
}

// HealthResponse is the GET /health response
type HealthResponse struct {
	Healthy bool `json:"healthy"`
}

// ErrorResponse is the generic error response
type ErrorResponse struct {
	Error string `json:"error"`
}
