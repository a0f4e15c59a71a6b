package types

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Configuration for a single node. Values are fixed before the node
// starts and never mutated afterwards.
type Configuration struct {
	// How many nodes form the cohort. Discovery and election both
	// wait until this many distinct peers are observed.
	Cohort int

	// The node identity, drawn randomly in [0, 65535] at startup.
	ClientID ClientID

	// Broker address, host:port.
	Broker string

	// Prefix under which the five protocol topics live.
	TopicPrefix string

	// Upper bound for the drawn challenge difficulty. The legal
	// range is [1, 20].
	DifficultyMax int

	// Interval between identity and ballot re-announcements.
	AnnounceInterval time.Duration

	// Spacing of the trailing init broadcasts emitted right before
	// leaving the init phase.
	BurstSpacing time.Duration

	// How long the freshly elected controller lets the network
	// quiesce before the first challenge, and how long it pauses
	// after a result before the next one.
	QuiesceDelay time.Duration

	// The mining worker yields for about a millisecond after this
	// many unsuccessful nonces.
	YieldEvery int

	// Optional address for the metrics exposition listener. Empty
	// disables the listener.
	MetricsAddress string

	// Registry backing the node instrumentation.
	Registry *prometheus.Registry

	// Storage backing the ledger.
	Storage Storage

	// Node logger.
	Logger Logger
}
