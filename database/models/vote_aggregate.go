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

// VoteAggregate is the denormalized per-target vote counter. It is only ever
// incremented (atomically, via upsert) after a VoteEvent has been durably
// written, so it eventually matches count(vote_event) for the target.
type VoteAggregate struct {
	ID       uint   `gorm:"primarykey"`
	TargetID string `gorm:"uniqueIndex;size:36;not null"`
	Count    uint64 `gorm:"not null"`
}

// TableName returns the table name
func (VoteAggregate) TableName() string {
	return "vote_aggregate"
}
