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
	"time"

	"github.com/blinklabs-io/quoll/database/models"
	"github.com/blinklabs-io/quoll/event"
	"github.com/blinklabs-io/quoll/notifier"
)

// notifierTarget maps a target row to the notification client's wire-level
// view, parsing the stored public key for the legacy protocol
func notifierTarget(t *models.Target) (notifier.Target, error) {
	ret := notifier.Target{
		Address:  t.VotifierAddress,
		Port:     t.VotifierPort,
		Protocol: notifier.Protocol(t.VotifierProtocol),
		Token:    t.VotifierToken,
	}
	if ret.Protocol == notifier.ProtocolLegacy {
		pubKey, err := notifier.ParsePublicKey(t.VotifierPublicKey)
		if err != nil {
			return ret, err
		}
		ret.PublicKey = pubKey
	}
	return ret, nil
}

// handleVoteAccepted consumes vote.accepted events. Each delivery runs on its
// own goroutine under its own timeout so the event bus worker never blocks on
// a slow game server.
func (g *Gateway) handleVoteAccepted(evt event.Event) {
	data, ok := evt.Data.(event.VoteAcceptedEvent)
	if !ok {
		return
	}
	g.deliveryWg.Add(1)
	go func() {
		defer g.deliveryWg.Done()
		g.deliverVote(data)
	}()
}

func (g *Gateway) deliverVote(data event.VoteAcceptedEvent) {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		g.config.NotifyTimeout+time.Second,
	)
	defer cancel()
	target, err := g.store.LookupTarget(ctx, data.TargetID)
	if err != nil {
		g.logger.Error(
			"delivery target lookup failed",
			"target", data.TargetID,
			"error", err,
		)
		g.finishDelivery(data.VoteID, models.DeliveryStatusFailed, "error")
		return
	}
	if target == nil || !target.VotifierConfigured() {
		// Configuration disappeared between acceptance and delivery
		g.finishDelivery(
			data.VoteID,
			models.DeliveryStatusUnsupported,
			"unsupported",
		)
		return
	}
	notifyTarget, err := notifierTarget(target)
	if err != nil {
		g.logger.Warn(
			"invalid votifier configuration",
			"target", data.TargetID,
			"error", err,
		)
		g.finishDelivery(data.VoteID, models.DeliveryStatusFailed, "rejected")
		return
	}
	start := time.Now()
	result := g.client.Notify(ctx, notifyTarget, notifier.Vote{
		ServiceName: g.config.ServiceName,
		Username:    data.VoterName,
		Address:     data.VoterIP,
		Timestamp:   data.OccurredAt,
	})
	if g.metrics != nil {
		g.metrics.deliveryDuration.Observe(time.Since(start).Seconds())
	}
	if result.Delivered {
		g.finishDelivery(data.VoteID, models.DeliveryStatusDelivered, "delivered")
		return
	}
	// Delivery failures are telemetry only; the vote stands
	g.logger.Warn(
		"vote notification failed",
		"target", data.TargetID,
		"vote", data.VoteID,
		"reason", string(result.Reason),
		"error", result.Err,
	)
	g.finishDelivery(
		data.VoteID,
		models.DeliveryStatusFailed,
		string(result.Reason),
	)
}

// finishDelivery records the delivery outcome on the vote event. A failure to
// record the outcome is logged and otherwise swallowed.
func (g *Gateway) finishDelivery(voteID string, status string, result string) {
	if g.metrics != nil {
		g.metrics.deliveries.WithLabelValues(result).Inc()
	}
	if err := g.store.UpdateDeliveryStatus(
		context.Background(),
		voteID,
		status,
	); err != nil {
		g.logger.Error(
			"failed to update delivery status",
			"vote", voteID,
			"status", status,
			"error", err,
		)
	}
}
