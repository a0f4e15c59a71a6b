package core

import (
	mapset "github.com/deckarep/golang-set"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
)

// Registry accumulates the cohort membership during the init phase.
// The set only grows. The registry itself keeps accepting identities
// after the cohort size is reached; the node stops observing once it
// leaves the init phase.
type Registry struct {
	// Own identity, registered on creation.
	self types.ClientID

	// Known peer identities, own included.
	peers mapset.Set

	// Cohort size the registry waits for.
	cohort int

	// Registry logger.
	log types.Logger
}

func NewRegistry(self types.ClientID, cohort int, log types.Logger) *Registry {
	peers := mapset.NewSet()
	peers.Add(self)
	return &Registry{
		self:   self,
		peers:  peers,
		cohort: cohort,
		log:    log,
	}
}

// Observe an announced identity. Returns whether the identity was
// unseen until now. Re-announcements are idempotent.
func (r *Registry) Observe(id types.ClientID) bool {
	added := r.peers.Add(id)
	if added {
		r.log.Infof("discovered peer %d, %d of %d", id, r.peers.Cardinality(), r.cohort)
	}
	return added
}

// Complete reports whether the whole cohort was discovered.
func (r *Registry) Complete() bool {
	return r.peers.Cardinality() >= r.cohort
}

// Size of the currently known membership.
func (r *Registry) Size() int {
	return r.peers.Cardinality()
}

// Snapshot of the known identities.
func (r *Registry) Snapshot() []types.ClientID {
	known := make([]types.ClientID, 0, r.peers.Cardinality())
	for _, id := range r.peers.ToSlice() {
		known = append(known, id.(types.ClientID))
	}
	return known
}
