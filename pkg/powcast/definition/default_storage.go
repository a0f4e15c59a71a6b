package definition

import (
	"sync"

	"github.com/jabolina/go-powcast/pkg/powcast/types"
)

// In memory storage for the ledger. The protocol does not persist
// the ledger across restarts, so this is the only storage shipped.
type DefaultStorage struct {
	mutex   sync.Mutex
	entries map[types.TransactionID]types.StorageEntry
}

func NewDefaultStorage() *DefaultStorage {
	return &DefaultStorage{
		entries: make(map[types.TransactionID]types.StorageEntry),
	}
}

// DefaultStorage implements Storage interface.
func (d *DefaultStorage) Set(entry types.StorageEntry) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.entries[entry.Key] = entry
	return nil
}

// DefaultStorage implements Storage interface.
func (d *DefaultStorage) Get(key types.TransactionID) (types.StorageEntry, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	entry, ok := d.entries[key]
	return entry, ok
}

// DefaultStorage implements Storage interface.
func (d *DefaultStorage) Dump() ([]types.StorageEntry, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	dump := make([]types.StorageEntry, 0, len(d.entries))
	for _, entry := range d.entries {
		dump = append(dump, entry)
	}
	return dump, nil
}
