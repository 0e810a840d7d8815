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

import "github.com/prometheus/client_golang/prometheus"

type gatewayMetrics struct {
	votesAccepted    prometheus.Counter
	votesRejected    *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
}

func (g *Gateway) initMetrics(promRegistry prometheus.Registerer) {
	g.metrics = &gatewayMetrics{
		votesAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quoll_votes_accepted_total",
				Help: "Total number of accepted votes",
			},
		),
		votesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoll_votes_rejected_total",
				Help: "Total number of rejected votes by reason",
			},
			[]string{"reason"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoll_vote_deliveries_total",
				Help: "Total number of reward notification attempts by result",
			},
			[]string{"result"},
		),
		deliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quoll_vote_delivery_duration_seconds",
				Help:    "Reward notification attempt duration",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	promRegistry.MustRegister(
		g.metrics.votesAccepted,
		g.metrics.votesRejected,
		g.metrics.deliveries,
		g.metrics.deliveryDuration,
	)
}
