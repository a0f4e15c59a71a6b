package core

import (
	"context"
	"time"
)

// Announcer periodically repeats a broadcast to defeat message loss
// and late joiners. Used during init for the identity announcement
// and during election for the ballot.
type Announcer struct {
	// Interval between repetitions.
	interval time.Duration

	// The broadcast to repeat.
	announce func()

	// The announcer context.
	context context.Context

	// The finish function to stop the announcements.
	finish context.CancelFunc
}

// Create an announcer and start repeating right away. The first
// announcement fires before the first tick.
func NewAnnouncer(parent context.Context, interval time.Duration, announce func(), invoker Invoker) *Announcer {
	ctx, done := context.WithCancel(parent)
	a := &Announcer{
		interval: interval,
		announce: announce,
		context:  ctx,
		finish:   done,
	}
	invoker.Spawn(a.run)
	return a
}

func (a *Announcer) run() {
	a.announce()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.context.Done():
			return
		case <-ticker.C:
			a.announce()
		}
	}
}

// Burst emits the broadcast count times with the given spacing,
// synchronously. Best effort, fired right before a node leaves a
// phase so that slower peers still converge.
func (a *Announcer) Burst(count int, spacing time.Duration) {
	for i := 0; i < count; i++ {
		a.announce()
		select {
		case <-a.context.Done():
		case <-time.After(spacing):
		}
	}
}

// Stop the periodic announcements.
func (a *Announcer) Stop() {
	a.finish()
}
