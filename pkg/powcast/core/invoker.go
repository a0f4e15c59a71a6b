package core

import (
	"sync"
)

// Interface to spawn and control the node goroutines.
type Invoker interface {
	// Spawn the function on a new controlled goroutine.
	Spawn(f func())

	// Block until every spawned goroutine finished.
	Stop()
}

type defaultInvoker struct {
	group *sync.WaitGroup
}

func NewInvoker() Invoker {
	return &defaultInvoker{
		group: &sync.WaitGroup{},
	}
}

func (i *defaultInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

func (i *defaultInvoker) Stop() {
	i.group.Wait()
}
