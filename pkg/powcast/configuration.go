package powcast

import (
	"time"

	"github.com/jabolina/go-powcast/pkg/powcast/definition"
	"github.com/jabolina/go-powcast/pkg/powcast/helper"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
	"github.com/magiconair/properties"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultBroker is a public broker, good enough for a
	// cooperative cohort.
	DefaultBroker = "broker.emqx.io:1883"

	// DefaultTopicPrefix under which the five topics live.
	DefaultTopicPrefix = "sd"

	// DefaultDifficultyMax keeps challenges solvable within
	// seconds. The legal range goes up to MaxDifficulty.
	DefaultDifficultyMax = 5

	// MaxDifficulty is the hard ceiling for a challenge, a SHA-1
	// digest only carries 40 hex characters to lead with zeros.
	MaxDifficulty = 20

	// DefaultYieldEvery is the worker yield boundary.
	DefaultYieldEvery = 50000
)

// DefaultConfiguration assembles a ready-to-run configuration with a
// freshly drawn identity, the default logger and an in-memory ledger
// storage.
func DefaultConfiguration(cohort int) *types.Configuration {
	id := types.ClientID(helper.DrawID())
	return &types.Configuration{
		Cohort:           cohort,
		ClientID:         id,
		Broker:           DefaultBroker,
		TopicPrefix:      DefaultTopicPrefix,
		DifficultyMax:    DefaultDifficultyMax,
		AnnounceInterval: 2 * time.Second,
		BurstSpacing:     200 * time.Millisecond,
		QuiesceDelay:     2 * time.Second,
		YieldEvery:       DefaultYieldEvery,
		Registry:         prometheus.NewRegistry(),
		Storage:          definition.NewDefaultStorage(),
		Logger:           definition.NewDefaultLogger("node"),
	}
}

// ApplyProperties overrides a configuration from a properties file.
// Unknown keys are ignored, a missing file leaves the configuration
// untouched.
func ApplyProperties(configuration *types.Configuration, path string) error {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return err
	}
	configuration.Broker = p.GetString("broker.address", configuration.Broker)
	configuration.TopicPrefix = p.GetString("topic.prefix", configuration.TopicPrefix)
	configuration.DifficultyMax = p.GetInt("challenge.difficulty.max", configuration.DifficultyMax)
	if configuration.DifficultyMax < 1 {
		configuration.DifficultyMax = 1
	}
	if configuration.DifficultyMax > MaxDifficulty {
		configuration.DifficultyMax = MaxDifficulty
	}
	configuration.AnnounceInterval = p.GetParsedDuration("announce.interval", configuration.AnnounceInterval)
	configuration.QuiesceDelay = p.GetParsedDuration("controller.quiesce", configuration.QuiesceDelay)
	configuration.MetricsAddress = p.GetString("metrics.address", configuration.MetricsAddress)
	return nil
}
