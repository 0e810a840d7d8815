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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/quoll/database"
	"github.com/blinklabs-io/quoll/database/models"
	"github.com/blinklabs-io/quoll/event"
	"github.com/blinklabs-io/quoll/notifier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is an injectable clock advanced manually by tests
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{
		now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeNotifier records delivery attempts and returns a canned result
type fakeNotifier struct {
	mu     sync.Mutex
	votes  []notifier.Vote
	result notifier.DeliveryResult
}

func (f *fakeNotifier) Notify(
	_ context.Context,
	_ notifier.Target,
	vote notifier.Vote,
) notifier.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, vote)
	return f.result
}

func (f *fakeNotifier) voteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes)
}

type testGateway struct {
	gateway  *Gateway
	db       *database.Database
	clock    *testClock
	notifier *fakeNotifier
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	clock := newTestClock()
	fake := &fakeNotifier{
		result: notifier.DeliveryResult{Delivered: true},
	}
	eventBus := event.NewEventBus(nil, nil)
	g := New(
		Config{
			ServiceName: "quoll-test",
			Now:         clock.Now,
		},
		db,
		fake,
		eventBus,
		nil,
	)
	t.Cleanup(func() {
		g.Stop()
		eventBus.Stop()
	})
	return &testGateway{
		gateway:  g,
		db:       db,
		clock:    clock,
		notifier: fake,
	}
}

func (tg *testGateway) seedTarget(t *testing.T, target models.Target) string {
	t.Helper()
	if target.ID == "" {
		target.ID = uuid.NewString()
	}
	if target.Name == "" {
		target.Name = "Test Server"
	}
	require.NoError(t, tg.db.CreateTarget(t.Context(), &target))
	return target.ID
}

func (tg *testGateway) seedTokenTarget(t *testing.T) string {
	t.Helper()
	return tg.seedTarget(t, models.Target{
		VotifierAddress:  "203.0.113.9",
		VotifierPort:     8192,
		VotifierProtocol: models.VotifierProtocolToken,
		VotifierToken:    "s3cret-t0ken",
	})
}

func newTestVoteEvent(targetID string, at time.Time) *models.VoteEvent {
	return &models.VoteEvent{
		ID:             uuid.NewString(),
		TargetID:       targetID,
		VoterIP:        "10.0.0.1",
		VoterName:      "Steve",
		OccurredAt:     at,
		DeliveryStatus: models.DeliveryStatusPending,
	}
}

func (tg *testGateway) deliveryStatus(t *testing.T, voteID string) string {
	t.Helper()
	var vote models.VoteEvent
	require.NoError(
		t,
		tg.db.DB().Where("id = ?", voteID).First(&vote).Error,
	)
	return vote.DeliveryStatus
}

func TestSubmitVoteInvalidVoter(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	_, err := tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "")
	assert.ErrorIs(t, err, ErrInvalidVoter)

	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "   ")
	assert.ErrorIs(t, err, ErrInvalidVoter)

	// A name longer than the ledger column would also overflow the legacy
	// protocol's RSA plaintext limit
	_, err = tg.gateway.SubmitVote(
		t.Context(),
		targetID,
		"10.0.0.1",
		strings.Repeat("a", maxVoterNameLen+1),
	)
	assert.ErrorIs(t, err, ErrInvalidVoter)

	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "", "Steve")
	assert.ErrorIs(t, err, ErrInvalidVoterIP)
}

func TestSubmitVoteTargetNotFound(t *testing.T) {
	tg := newTestGateway(t)
	_, err := tg.gateway.SubmitVote(
		t.Context(),
		uuid.NewString(),
		"10.0.0.1",
		"Steve",
	)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestSubmitVoteCooldown(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	outcome, err := tg.gateway.SubmitVote(
		t.Context(), targetID, "10.0.0.1", "Steve",
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), outcome.VoteCount)

	// Immediate retry sits at the start of the window
	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "Steve")
	var cdErr CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 24, cdErr.HoursLeft())

	// 22h30m remaining still rounds up to a full hour count
	tg.clock.Advance(90 * time.Minute)
	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "Steve")
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 23, cdErr.HoursLeft())

	// A different voter is not affected by the cooldown
	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.2", "Alex")
	require.NoError(t, err)

	// Past the window the original voter may vote again
	tg.clock.Advance(23 * time.Hour)
	outcome, err = tg.gateway.SubmitVote(
		t.Context(), targetID, "10.0.0.1", "Steve",
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), outcome.VoteCount)
}

func TestSubmitVoteConcurrent(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	const submitters = 8
	var wg sync.WaitGroup
	var acceptedMutex sync.Mutex
	var accepted, rejected int
	for range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tg.gateway.SubmitVote(
				t.Context(), targetID, "10.0.0.1", "Steve",
			)
			acceptedMutex.Lock()
			defer acceptedMutex.Unlock()
			if err == nil {
				accepted++
				return
			}
			var cdErr CooldownError
			if errors.As(err, &cdErr) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, submitters-1, rejected)

	count, err := tg.gateway.VoteCount(t.Context(), targetID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSubmitVoteUnsupportedTarget(t *testing.T) {
	tg := newTestGateway(t)
	// No votifier configuration at all
	targetID := tg.seedTarget(t, models.Target{})

	outcome, err := tg.gateway.SubmitVote(
		t.Context(), targetID, "10.0.0.1", "Steve",
	)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusUnsupported, outcome.DeliveryStatus)
	assert.Equal(t, uint64(1), outcome.VoteCount)

	// No delivery attempt should ever happen
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, tg.notifier.voteCount())
	assert.Equal(
		t,
		models.DeliveryStatusUnsupported,
		tg.deliveryStatus(t, outcome.VoteID),
	)
}

func TestSubmitVoteDelivered(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	outcome, err := tg.gateway.SubmitVote(
		t.Context(), targetID, "10.0.0.1", "Steve",
	)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusPending, outcome.DeliveryStatus)

	require.Eventually(
		t,
		func() bool {
			return tg.deliveryStatus(t, outcome.VoteID) ==
				models.DeliveryStatusDelivered
		},
		5*time.Second,
		10*time.Millisecond,
	)

	tg.notifier.mu.Lock()
	defer tg.notifier.mu.Unlock()
	require.Len(t, tg.notifier.votes, 1)
	assert.Equal(t, "quoll-test", tg.notifier.votes[0].ServiceName)
	assert.Equal(t, "Steve", tg.notifier.votes[0].Username)
	assert.Equal(t, "10.0.0.1", tg.notifier.votes[0].Address)
}

func TestSubmitVoteDeliveryFailed(t *testing.T) {
	tg := newTestGateway(t)
	tg.notifier.result = notifier.DeliveryResult{
		Delivered: false,
		Reason:    notifier.FailureUnreachable,
	}
	targetID := tg.seedTokenTarget(t)

	outcome, err := tg.gateway.SubmitVote(
		t.Context(), targetID, "10.0.0.1", "Steve",
	)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusPending, outcome.DeliveryStatus)

	// The vote stands even though delivery fails
	require.Eventually(
		t,
		func() bool {
			return tg.deliveryStatus(t, outcome.VoteID) ==
				models.DeliveryStatusFailed
		},
		5*time.Second,
		10*time.Millisecond,
	)
	count, err := tg.gateway.VoteCount(t.Context(), targetID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestStopDrainsBufferedDelivery(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	// Record the vote row the delivery will update, then publish its event
	// directly so it can sit buffered in the subscriber channel when Stop
	// runs
	vote := newTestVoteEvent(targetID, tg.clock.Now())
	require.NoError(t, tg.db.RecordVote(t.Context(), vote))
	tg.gateway.eventBus.Publish(
		event.VoteAcceptedEventType,
		event.NewEvent(
			event.VoteAcceptedEventType,
			event.VoteAcceptedEvent{
				VoteID:     vote.ID,
				TargetID:   targetID,
				VoterName:  vote.VoterName,
				VoterIP:    vote.VoterIP,
				OccurredAt: vote.OccurredAt,
			},
		),
	)
	tg.gateway.Stop()

	// The buffered event's delivery must have finished before Stop returned
	assert.Equal(t, 1, tg.notifier.voteCount())
	assert.Equal(
		t,
		models.DeliveryStatusDelivered,
		tg.deliveryStatus(t, vote.ID),
	)

	// And no delivery may start after Stop
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tg.notifier.voteCount())
}

func TestCanVote(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	canVote, timeLeft, err := tg.gateway.CanVote(
		t.Context(), targetID, "10.0.0.1",
	)
	require.NoError(t, err)
	assert.True(t, canVote)
	assert.Equal(t, time.Duration(0), timeLeft)

	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "Steve")
	require.NoError(t, err)

	// Immediately after the vote the full window remains
	canVote, timeLeft, err = tg.gateway.CanVote(
		t.Context(), targetID, "10.0.0.1",
	)
	require.NoError(t, err)
	assert.False(t, canVote)
	assert.Equal(t, DefaultCooldown, timeLeft)

	tg.clock.Advance(6 * time.Hour)
	canVote, timeLeft, err = tg.gateway.CanVote(
		t.Context(), targetID, "10.0.0.1",
	)
	require.NoError(t, err)
	assert.False(t, canVote)
	assert.Equal(t, 18*time.Hour, timeLeft)

	tg.clock.Advance(18 * time.Hour)
	canVote, timeLeft, err = tg.gateway.CanVote(
		t.Context(), targetID, "10.0.0.1",
	)
	require.NoError(t, err)
	assert.True(t, canVote)
	assert.Equal(t, time.Duration(0), timeLeft)
}

func TestCanVoteTargetNotFound(t *testing.T) {
	tg := newTestGateway(t)
	_, _, err := tg.gateway.CanVote(t.Context(), uuid.NewString(), "10.0.0.1")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestVoteCountUnknownTarget(t *testing.T) {
	tg := newTestGateway(t)
	_, err := tg.gateway.VoteCount(t.Context(), uuid.NewString())
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestTopVoters(t *testing.T) {
	tg := newTestGateway(t)
	targetID := tg.seedTokenTarget(t)

	// Three voters; Steve votes twice across the cooldown boundary
	_, err := tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "Steve")
	require.NoError(t, err)
	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.2", "Alex")
	require.NoError(t, err)
	tg.clock.Advance(25 * time.Hour)
	_, err = tg.gateway.SubmitVote(t.Context(), targetID, "10.0.0.1", "Steve")
	require.NoError(t, err)

	topVoters, err := tg.gateway.TopVoters(t.Context(), targetID)
	require.NoError(t, err)
	require.Len(t, topVoters, 2)
	assert.Equal(t, "Steve", topVoters[0].VoterName)
	assert.Equal(t, uint64(2), topVoters[0].VoteCount)
	assert.Equal(t, "Alex", topVoters[1].VoterName)
	assert.Equal(t, uint64(1), topVoters[1].VoteCount)
}

func TestCooldownErrorHoursLeft(t *testing.T) {
	testDefs := []struct {
		remaining time.Duration
		hours     int
	}{
		{remaining: 24 * time.Hour, hours: 24},
		{remaining: 23*time.Hour + 30*time.Minute, hours: 24},
		{remaining: 23 * time.Hour, hours: 23},
		{remaining: time.Minute, hours: 1},
		{remaining: time.Second, hours: 1},
	}
	for _, testDef := range testDefs {
		cdErr := CooldownError{Remaining: testDef.remaining}
		assert.Equal(
			t,
			testDef.hours,
			cdErr.HoursLeft(),
			"remaining %s",
			testDef.remaining,
		)
	}
}
