package powcast

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfiguration_Defaults(t *testing.T) {
	configuration := DefaultConfiguration(3)
	require.Equal(t, 3, configuration.Cohort)
	require.Equal(t, DefaultBroker, configuration.Broker)
	require.Equal(t, DefaultTopicPrefix, configuration.TopicPrefix)
	require.Equal(t, DefaultDifficultyMax, configuration.DifficultyMax)
	require.NotNil(t, configuration.Storage)
	require.NotNil(t, configuration.Logger)
	require.NotNil(t, configuration.Registry)
	require.GreaterOrEqual(t, int(configuration.ClientID), 0)
	require.Less(t, int(configuration.ClientID), 1<<16)
}

func TestConfiguration_PropertiesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powcast.properties")
	content := `
broker.address = localhost:1883
topic.prefix = lab
challenge.difficulty.max = 99
announce.interval = 500ms
`
	require.NoError(t, ioutil.WriteFile(path, []byte(content), os.FileMode(0644)))

	configuration := DefaultConfiguration(3)
	require.NoError(t, ApplyProperties(configuration, path))
	require.Equal(t, "localhost:1883", configuration.Broker)
	require.Equal(t, "lab", configuration.TopicPrefix)
	require.Equal(t, 500*time.Millisecond, configuration.AnnounceInterval)

	// The difficulty ceiling is clamped to MaxDifficulty.
	require.Equal(t, MaxDifficulty, configuration.DifficultyMax)
}

func TestConfiguration_MissingFileFails(t *testing.T) {
	configuration := DefaultConfiguration(3)
	require.Error(t, ApplyProperties(configuration, filepath.Join(t.TempDir(), "absent.properties")))
}
