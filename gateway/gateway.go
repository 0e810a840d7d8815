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

// Package gateway orchestrates vote intake: it validates a vote request,
// enforces the per-voter cooldown against the ledger, durably records the
// vote and hands delivery of the reward notification to a detached worker so
// a slow or unreachable game server can never stall vote acceptance.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/quoll/database"
	"github.com/blinklabs-io/quoll/database/models"
	"github.com/blinklabs-io/quoll/event"
	"github.com/blinklabs-io/quoll/notifier"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultCooldown is the minimum time between two votes from the same
	// source for the same target
	DefaultCooldown = 24 * time.Hour
	// topVotersLimit caps the voter leaderboard size
	topVotersLimit = 10
	// maxVoterNameLen matches the vote_event.voter_name column width.
	// Oversized names would also overflow the legacy protocol's RSA
	// plaintext limit, failing every delivery for the vote.
	maxVoterNameLen = 64
)

// VoteStore is the ledger and registry interface the gateway depends on. It
// is satisfied by database.Database; tests substitute their own.
type VoteStore interface {
	AcquireVoterLock(targetID string, voterIP string) func()
	LastVoteAt(
		ctx context.Context,
		targetID string,
		voterIP string,
	) (time.Time, bool, error)
	RecordVote(ctx context.Context, vote *models.VoteEvent) error
	IncrementVoteAggregate(
		ctx context.Context,
		targetID string,
	) (uint64, error)
	VoteAggregateCount(ctx context.Context, targetID string) (uint64, error)
	UpdateDeliveryStatus(
		ctx context.Context,
		voteID string,
		status string,
	) error
	LookupTarget(ctx context.Context, targetID string) (*models.Target, error)
	TopVoters(
		ctx context.Context,
		targetID string,
		since time.Time,
		limit int,
	) ([]database.TopVoter, error)
}

// VoteNotifier makes a single reward notification attempt
type VoteNotifier interface {
	Notify(
		ctx context.Context,
		target notifier.Target,
		vote notifier.Vote,
	) notifier.DeliveryResult
}

// VoteOutcome is the caller-visible result of an accepted vote. Acceptance is
// never reversed by a later delivery failure.
type VoteOutcome struct {
	VoteID         string
	VoteCount      uint64
	DeliveryStatus string
}

// Config describes the gateway configuration
type Config struct {
	// Cooldown is the per-(target, voter IP) vote cooldown window. Zero
	// selects DefaultCooldown
	Cooldown time.Duration
	// NotifyTimeout bounds each delivery attempt. Zero selects
	// notifier.DefaultTimeout
	NotifyTimeout time.Duration
	// ServiceName identifies this vote site in notification payloads
	ServiceName string
	// Now supplies the current time, injectable for testing
	Now func() time.Time
	// PromRegistry receives gateway metrics when set
	PromRegistry prometheus.Registerer
}

// Gateway accepts votes and schedules reward notifications
type Gateway struct {
	config       Config
	store        VoteStore
	client       VoteNotifier
	eventBus     *event.EventBus
	logger       *slog.Logger
	metrics      *gatewayMetrics
	subId        event.EventSubscriberId
	consumerDone chan struct{}
	deliveryWg   sync.WaitGroup
}

// New creates a gateway and registers its delivery worker on the event bus
func New(
	cfg Config,
	store VoteStore,
	client VoteNotifier,
	eventBus *event.EventBus,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "gateway")
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = notifier.DefaultTimeout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "quoll"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Gateway{
		config:   cfg,
		store:    store,
		client:   client,
		eventBus: eventBus,
		logger:   logger,
	}
	if cfg.PromRegistry != nil {
		g.initMetrics(cfg.PromRegistry)
	}
	// The gateway owns its subscription drain loop so that Stop can join it
	// before waiting on the delivery WaitGroup. Draining buffered events
	// after the channel close still happens-before the Wait below.
	subId, evtCh := eventBus.Subscribe(event.VoteAcceptedEventType)
	g.subId = subId
	g.consumerDone = make(chan struct{})
	go func() {
		defer close(g.consumerDone)
		for evt := range evtCh {
			g.handleVoteAccepted(evt)
		}
	}()
	return g
}

// Stop unsubscribes the delivery worker, drains any buffered vote events and
// waits for in-flight deliveries
func (g *Gateway) Stop() {
	g.eventBus.Unsubscribe(event.VoteAcceptedEventType, g.subId)
	<-g.consumerDone
	g.deliveryWg.Wait()
}

// cooldownRemaining is the single cooldown computation shared by the vote
// write path and the read-only pre-check so the two can never disagree
func (g *Gateway) cooldownRemaining(lastVoteAt, now time.Time) time.Duration {
	remaining := g.config.Cooldown - now.Sub(lastVoteAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubmitVote validates and records a vote. On acceptance the vote is durable
// before this returns; reward notification happens on a detached path and
// only updates the vote's delivery status afterward.
func (g *Gateway) SubmitVote(
	ctx context.Context,
	targetID string,
	voterIP string,
	voterName string,
) (VoteOutcome, error) {
	voterName = strings.TrimSpace(voterName)
	if voterName == "" || len(voterName) > maxVoterNameLen {
		return VoteOutcome{}, ErrInvalidVoter
	}
	if voterIP == "" {
		return VoteOutcome{}, ErrInvalidVoterIP
	}
	target, err := g.store.LookupTarget(ctx, targetID)
	if err != nil {
		return VoteOutcome{}, err
	}
	if target == nil {
		return VoteOutcome{}, ErrTargetNotFound
	}
	// Hold the per-voter lock across the cooldown check and the vote write
	// so concurrent votes from the same source cannot both pass the gate
	release := g.store.AcquireVoterLock(targetID, voterIP)
	defer release()
	lastVoteAt, voted, err := g.store.LastVoteAt(ctx, targetID, voterIP)
	if err != nil {
		return VoteOutcome{}, err
	}
	now := g.config.Now()
	if voted {
		if remaining := g.cooldownRemaining(lastVoteAt, now); remaining > 0 {
			if g.metrics != nil {
				g.metrics.votesRejected.WithLabelValues("cooldown").Inc()
			}
			return VoteOutcome{}, CooldownError{Remaining: remaining}
		}
	}
	// Cancellation is honored up to the ledger write; once the vote is
	// recorded it stands
	if err := ctx.Err(); err != nil {
		return VoteOutcome{}, err
	}
	deliveryStatus := models.DeliveryStatusPending
	if !target.VotifierConfigured() {
		deliveryStatus = models.DeliveryStatusUnsupported
	}
	vote := &models.VoteEvent{
		ID:             uuid.NewString(),
		TargetID:       targetID,
		VoterIP:        voterIP,
		VoterName:      voterName,
		OccurredAt:     now,
		DeliveryStatus: deliveryStatus,
	}
	if err := g.store.RecordVote(ctx, vote); err != nil {
		return VoteOutcome{}, err
	}
	postCtx := context.WithoutCancel(ctx)
	voteCount, err := g.store.IncrementVoteAggregate(postCtx, targetID)
	if err != nil {
		// The vote is already durable, so the aggregate will drift by one
		// until corrected; do not fail the vote over it
		g.logger.Error(
			"failed to increment vote aggregate",
			"target", targetID,
			"error", err,
		)
	}
	if g.metrics != nil {
		g.metrics.votesAccepted.Inc()
	}
	if deliveryStatus == models.DeliveryStatusPending {
		g.eventBus.Publish(
			event.VoteAcceptedEventType,
			event.NewEvent(
				event.VoteAcceptedEventType,
				event.VoteAcceptedEvent{
					VoteID:     vote.ID,
					TargetID:   targetID,
					VoterName:  voterName,
					VoterIP:    voterIP,
					OccurredAt: now,
				},
			),
		)
	}
	g.logger.Info(
		"vote accepted",
		"target", targetID,
		"voter", voterName,
		"deliveryStatus", deliveryStatus,
	)
	return VoteOutcome{
		VoteID:         vote.ID,
		VoteCount:      voteCount,
		DeliveryStatus: deliveryStatus,
	}, nil
}

// CanVote is the read-only projection of the cooldown rule used by clients to
// pre-check before showing a vote action
func (g *Gateway) CanVote(
	ctx context.Context,
	targetID string,
	voterIP string,
) (bool, time.Duration, error) {
	target, err := g.store.LookupTarget(ctx, targetID)
	if err != nil {
		return false, 0, err
	}
	if target == nil {
		return false, 0, ErrTargetNotFound
	}
	lastVoteAt, voted, err := g.store.LastVoteAt(ctx, targetID, voterIP)
	if err != nil {
		return false, 0, err
	}
	if !voted {
		return true, 0, nil
	}
	remaining := g.cooldownRemaining(lastVoteAt, g.config.Now())
	if remaining <= 0 {
		return true, 0, nil
	}
	return false, remaining, nil
}

// VoteCount returns the current aggregate vote counter for a target
func (g *Gateway) VoteCount(
	ctx context.Context,
	targetID string,
) (uint64, error) {
	target, err := g.store.LookupTarget(ctx, targetID)
	if err != nil {
		return 0, err
	}
	if target == nil {
		return 0, ErrTargetNotFound
	}
	return g.store.VoteAggregateCount(ctx, targetID)
}

// TopVoters returns the current month's voter leaderboard for a target
func (g *Gateway) TopVoters(
	ctx context.Context,
	targetID string,
) ([]database.TopVoter, error) {
	target, err := g.store.LookupTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrTargetNotFound
	}
	now := g.config.Now().UTC()
	monthStart := time.Date(
		now.Year(), now.Month(), 1,
		0, 0, 0, 0,
		time.UTC,
	)
	return g.store.TopVoters(ctx, targetID, monthStart, topVotersLimit)
}
