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
	"context"
	"time"

	"github.com/blinklabs-io/quoll/database"
	"github.com/blinklabs-io/quoll/gateway"
)

// VoteGateway is the interface the API server uses to accept votes and read
// vote state. It is implemented by gateway.Gateway; tests provide a mock.
type VoteGateway interface {
	SubmitVote(
		ctx context.Context,
		targetID string,
		voterIP string,
		voterName string,
	) (gateway.VoteOutcome, error)
	CanVote(
		ctx context.Context,
		targetID string,
		voterIP string,
	) (bool, time.Duration, error)
	VoteCount(ctx context.Context, targetID string) (uint64, error)
	TopVoters(
		ctx context.Context,
		targetID string,
	) ([]database.TopVoter, error)
}
