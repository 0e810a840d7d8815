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

package event

import "time"

// VoteAcceptedEventType is the event type for accepted votes that need a
// reward notification delivered to the target
const VoteAcceptedEventType = EventType("vote.accepted")

// VoteAcceptedEvent is emitted after a vote has been durably recorded for a
// target with votifier configuration. The delivery worker consumes it and
// updates the vote's delivery status with the notification outcome.
type VoteAcceptedEvent struct {
	// VoteID is the recorded vote event ID
	VoteID string
	// TargetID is the voted-for target
	TargetID string
	// VoterName is the caller-supplied in-game identity
	VoterName string
	// VoterIP is the voter's source address
	VoterIP string
	// OccurredAt is the ledger timestamp of the vote
	OccurredAt time.Time
}
