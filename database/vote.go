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

package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blinklabs-io/quoll/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// voterLock is a reference-counted mutex for a single (target, voter IP) pair
type voterLock struct {
	mu   sync.Mutex
	refs int
}

// AcquireVoterLock locks the given (target, voter IP) pair and returns a
// release function. The lock must be held across the cooldown check and the
// subsequent vote write so that two concurrent votes from the same source
// cannot both pass the cooldown gate.
func (d *Database) AcquireVoterLock(targetID string, voterIP string) func() {
	key := targetID + "|" + voterIP
	d.voterLocksMutex.Lock()
	l, ok := d.voterLocks[key]
	if !ok {
		l = &voterLock{}
		d.voterLocks[key] = l
	}
	l.refs++
	d.voterLocksMutex.Unlock()
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.voterLocksMutex.Lock()
		l.refs--
		if l.refs <= 0 {
			delete(d.voterLocks, key)
		}
		d.voterLocksMutex.Unlock()
	}
}

// LastVoteAt returns the timestamp of the most recent vote for the given
// (target, voter IP) pair. The second return value is false when no vote
// exists.
func (d *Database) LastVoteAt(
	ctx context.Context,
	targetID string,
	voterIP string,
) (time.Time, bool, error) {
	var vote models.VoteEvent
	result := d.db.WithContext(ctx).
		Where("target_id = ? AND voter_ip = ?", targetID, voterIP).
		Order("occurred_at DESC").
		First(&vote)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, PersistenceError{
			Op:  "last vote lookup",
			Err: result.Error,
		}
	}
	return vote.OccurredAt, true, nil
}

// RecordVote durably appends a vote event
func (d *Database) RecordVote(
	ctx context.Context,
	vote *models.VoteEvent,
) error {
	result := d.db.WithContext(ctx).Create(vote)
	if result.Error != nil {
		return PersistenceError{
			Op:  "record vote",
			Err: result.Error,
		}
	}
	return nil
}

// IncrementVoteAggregate atomically adds one to the per-target vote counter
// and returns the new count. The increment happens inside the database engine
// so concurrent votes for the same target cannot lose updates.
func (d *Database) IncrementVoteAggregate(
	ctx context.Context,
	targetID string,
) (uint64, error) {
	var newCount uint64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "target_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count": gorm.Expr("count + ?", 1),
			}),
		}).Create(&models.VoteAggregate{
			TargetID: targetID,
			Count:    1,
		})
		if result.Error != nil {
			return result.Error
		}
		var agg models.VoteAggregate
		if err := tx.Where("target_id = ?", targetID).First(&agg).Error; err != nil {
			return err
		}
		newCount = agg.Count
		return nil
	})
	if err != nil {
		return 0, PersistenceError{
			Op:  "increment vote aggregate",
			Err: err,
		}
	}
	return newCount, nil
}

// VoteAggregateCount returns the current vote counter for a target. Targets
// that have never been voted for report zero.
func (d *Database) VoteAggregateCount(
	ctx context.Context,
	targetID string,
) (uint64, error) {
	var agg models.VoteAggregate
	result := d.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		First(&agg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, PersistenceError{
			Op:  "vote aggregate lookup",
			Err: result.Error,
		}
	}
	return agg.Count, nil
}

// UpdateDeliveryStatus records the notification outcome for a vote event.
// Failures here are surfaced to the caller for logging but must not affect
// the vote itself.
func (d *Database) UpdateDeliveryStatus(
	ctx context.Context,
	voteID string,
	status string,
) error {
	result := d.db.WithContext(ctx).
		Model(&models.VoteEvent{}).
		Where("id = ?", voteID).
		Update("delivery_status", status)
	if result.Error != nil {
		return PersistenceError{
			Op:  "update delivery status",
			Err: result.Error,
		}
	}
	return nil
}

// TopVoter is a single entry in a target's voter leaderboard
type TopVoter struct {
	VoterName string
	VoteCount uint64
}

// TopVoters returns the voter names with the most votes for a target since
// the given time, ordered by vote count descending. Ties are broken by name
// for stable output.
func (d *Database) TopVoters(
	ctx context.Context,
	targetID string,
	since time.Time,
	limit int,
) ([]TopVoter, error) {
	var ret []TopVoter
	result := d.db.WithContext(ctx).
		Model(&models.VoteEvent{}).
		Select("voter_name, count(*) AS vote_count").
		Where("target_id = ? AND occurred_at >= ?", targetID, since).
		Group("voter_name").
		Order("vote_count DESC, voter_name ASC").
		Limit(limit).
		Scan(&ret)
	if result.Error != nil {
		return nil, PersistenceError{
			Op:  "top voters",
			Err: result.Error,
		}
	}
	return ret, nil
}
