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

// Votifier protocol constants for Target.VotifierProtocol
const (
	VotifierProtocolLegacy = "legacy"
	VotifierProtocolToken  = "token"
)

// Target represents a listed game server that can receive votes. The votifier
// fields are optional notification configuration owned by the administrative
// surface; this service only ever reads them. A target without a usable
// votifier configuration still accepts votes, it just never receives reward
// notifications.
type Target struct {
	ID                string `gorm:"primarykey;size:36"`
	Name              string `gorm:"size:128;not null"`
	VotifierAddress   string `gorm:"size:256"`
	VotifierPort      uint   `gorm:""`
	VotifierProtocol  string `gorm:"size:16"` // legacy or token
	VotifierPublicKey string `gorm:"type:text"`
	VotifierToken     string `gorm:"size:256"`
}

// TableName returns the table name
func (Target) TableName() string {
	return "target"
}

// VotifierConfigured returns true when the target carries enough configuration
// to attempt a reward notification for its protocol version.
func (t *Target) VotifierConfigured() bool {
	if t.VotifierAddress == "" || t.VotifierPort == 0 {
		return false
	}
	switch t.VotifierProtocol {
	case VotifierProtocolLegacy:
		return t.VotifierPublicKey != ""
	case VotifierProtocolToken:
		return t.VotifierToken != ""
	default:
		return false
	}
}
