package main

import (
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jabolina/go-powcast/pkg/powcast"
	"github.com/jabolina/go-powcast/pkg/powcast/metric"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	cohort = kingpin.Arg("cohort", "Cohort size, how many nodes participate.").Default("3").String()
	config = kingpin.Flag("config", "Optional properties file with overrides.").Short('c').String()
	debug  = kingpin.Flag("debug", "Enable debug logging.").Short('d').Bool()
)

func main() {
	kingpin.Parse()
	rand.Seed(time.Now().UnixNano())

	// An unparseable cohort argument falls back to the default
	// instead of refusing to start.
	size, err := strconv.Atoi(*cohort)
	if err != nil || size <= 0 {
		size = 3
	}

	configuration := powcast.DefaultConfiguration(size)
	configuration.Logger.ToggleDebug(*debug)
	if *config != "" {
		if err := powcast.ApplyProperties(configuration, *config); err != nil {
			configuration.Logger.Fatalf("failed loading %s. %v", *config, err)
		}
	}

	node, err := powcast.NewNode(configuration)
	if err != nil {
		configuration.Logger.Fatalf("failed connecting to %s. %v", configuration.Broker, err)
	}
	node.Start()

	if configuration.MetricsAddress != "" {
		go func() {
			if err := metric.Serve(configuration.MetricsAddress, configuration.Registry); err != nil {
				configuration.Logger.Errorf("metrics listener failed. %v", err)
			}
		}()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-interrupt
	node.Shutdown()
}
