package core

import (
	"testing"
	"time"

	"github.com/jabolina/go-powcast/pkg/powcast/definition"
	"github.com/jabolina/go-powcast/pkg/powcast/metric"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Configuration tuned for fast tests, short waits and the lowest
// difficulty so every search finishes within a few nonces.
func testConfiguration(id types.ClientID) *types.Configuration {
	return &types.Configuration{
		Cohort:           3,
		ClientID:         id,
		TopicPrefix:      "sd",
		DifficultyMax:    1,
		AnnounceInterval: 20 * time.Millisecond,
		BurstSpacing:     time.Millisecond,
		QuiesceDelay:     5 * time.Millisecond,
		YieldEvery:       100,
		Registry:         prometheus.NewRegistry(),
		Storage:          definition.NewDefaultStorage(),
		Logger:           definition.NewDefaultLogger("core-test"),
	}
}

func testMetrics() *metric.NodeMetrics {
	return metric.NewNodeMetrics(prometheus.NewRegistry())
}

// Wait for the next message on the given topic, discarding traffic
// on every other topic.
func receiveOn(t *testing.T, transport Transport, topic string, timeout time.Duration) ([]byte, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case in := <-transport.Listen():
			if in.Topic == topic {
				return in.Payload, true
			}
		case <-deadline:
			return nil, false
		}
	}
}
