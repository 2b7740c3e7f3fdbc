// This file is part of duskchain.
//
// duskchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// duskchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with duskchain. If not, see <http://www.gnu.org/licenses/>.

package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the gossip-layer counters and gauges a node exposes. They are
// independent of any particular registry so tests can build a Metrics
// without touching the global default registry.
type Metrics struct {
	MessagesReceived *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	BlocksAccepted   prometheus.Counter
	TransactionsSeen prometheus.Counter
	KnownPeers       prometheus.Gauge
}

// NewMetrics builds a Metrics and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duskchain_gossip_messages_received_total",
			Help: "Gossip messages received, by command.",
		}, []string{"command"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duskchain_gossip_messages_sent_total",
			Help: "Gossip messages sent, by command.",
		}, []string{"command"}),
		BlocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duskchain_blocks_accepted_total",
			Help: "Blocks accepted into the local chain via gossip.",
		}),
		TransactionsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duskchain_transactions_seen_total",
			Help: "Transactions received into the mempool via gossip.",
		}),
		KnownPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "duskchain_known_peers",
			Help: "Number of peer addresses currently known to this node.",
		}),
	}
	reg.MustRegister(m.MessagesReceived, m.MessagesSent, m.BlocksAccepted, m.TransactionsSeen, m.KnownPeers)
	return m
}
