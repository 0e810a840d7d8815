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

package models

import "time"

// DeliveryStatus constants represent the reward notification state of a vote.
// A vote starts out pending and is updated exactly once by the delivery worker,
// except for targets without a votifier configuration, which are marked
// unsupported at acceptance time.
const (
	DeliveryStatusPending     = "pending"
	DeliveryStatusDelivered   = "delivered"
	DeliveryStatusFailed      = "failed"
	DeliveryStatusUnsupported = "unsupported"
)

// VoteEvent represents a single accepted vote for a target. Rows are
// append-only; only delivery_status is ever updated after insert.
type VoteEvent struct {
	ID             string    `gorm:"primarykey;size:36"`
	TargetID       string    `gorm:"index:idx_vote_target_voter,priority:1;size:36;not null"`
	VoterIP        string    `gorm:"index:idx_vote_target_voter,priority:2;size:64;not null"`
	VoterName      string    `gorm:"size:64;not null"`
	OccurredAt     time.Time `gorm:"index:idx_vote_target_voter,priority:3;not null"`
	DeliveryStatus string    `gorm:"size:16;not null"`
}

// TableName returns the table name
func (VoteEvent) TableName() string {
	return "vote_event"
}
