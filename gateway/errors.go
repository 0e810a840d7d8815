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
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrTargetNotFound is returned when a vote references an unknown target
var ErrTargetNotFound = errors.New("target not found")

// ErrInvalidVoter is returned when the voter name is empty after trimming or
// too long for the ledger and wire protocols
var ErrInvalidVoter = errors.New("invalid voter name")

// ErrInvalidVoterIP is returned when no voter source address could be
// resolved from the request
var ErrInvalidVoterIP = errors.New("voter address is required")

// CooldownError is returned when a voter has already voted for a target
// within the cooldown window. It is an expected business condition, not an
// internal failure.
type CooldownError struct {
	Remaining time.Duration
}

func (e CooldownError) Error() string {
	return fmt.Sprintf(
		"you can vote again in %d hours",
		e.HoursLeft(),
	)
}

// HoursLeft returns the remaining wait rounded up to whole hours. This
// rounding is part of the user-facing contract.
func (e CooldownError) HoursLeft() int {
	return int(math.Ceil(e.Remaining.Hours()))
}
