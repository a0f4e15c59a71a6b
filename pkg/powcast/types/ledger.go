package types

import (
	"errors"
	"sort"

	lock "github.com/viney-shih/go-lock"
)

var (
	// Err returned when opening a transaction that already exists.
	ErrTransactionExists = errors.New("transaction already on the ledger")

	// Err returned when the referenced transaction is not on the ledger.
	ErrUnknownTransaction = errors.New("transaction not on the ledger")

	// Err returned when resolving a transaction that already has a winner.
	ErrAlreadyResolved = errors.New("transaction already resolved")
)

// NoWinner marks a transaction that is still open for mining.
const NoWinner ClientID = -1

// Transaction is one challenge on the ledger. Once a winner is
// recorded the whole triple is immutable.
type Transaction struct {
	ID        TransactionID
	Challenge int
	Solution  string
	Winner    ClientID
}

// Resolved reports whether a winner was already recorded.
func (t Transaction) Resolved() bool {
	return t.Winner != NoWinner
}

// Ledger maps transaction ids to their challenge, solution and winner.
// The controller holds the authoritative copy, miners hold a local
// best-effort view populated from challenge and result broadcasts.
//
// The dispatcher and the controller's delayed issue goroutine write
// to the ledger while tests read from it, so access goes through a
// reader/writer lock.
type Ledger struct {
	mutex lock.RWMutex
	store Storage
}

func NewLedger(storage Storage) *Ledger {
	return &Ledger{
		mutex: lock.NewCASMutex(),
		store: storage,
	}
}

// Open records a transaction in the pending state. Opening the same
// id twice fails, the first record wins.
func (l *Ledger) Open(id TransactionID, difficulty int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.store.Get(id); ok {
		return ErrTransactionExists
	}
	return l.store.Set(StorageEntry{
		Key: id,
		Value: Transaction{
			ID:        id,
			Challenge: difficulty,
			Solution:  "",
			Winner:    NoWinner,
		},
	})
}

// Resolve records the winning solution for an open transaction.
// A resolved entry is never rewritten.
func (l *Ledger) Resolve(id TransactionID, solution string, winner ClientID) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry, ok := l.store.Get(id)
	if !ok {
		return ErrUnknownTransaction
	}
	if entry.Value.Resolved() {
		return ErrAlreadyResolved
	}
	entry.Value.Solution = solution
	entry.Value.Winner = winner
	return l.store.Set(entry)
}

// Get reads a single transaction.
func (l *Ledger) Get(id TransactionID) (Transaction, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	entry, ok := l.store.Get(id)
	if !ok {
		return Transaction{}, false
	}
	return entry.Value, true
}

// Pending reports how many transactions are still open. The
// controller keeps this at most one.
func (l *Ledger) Pending() int {
	pending := 0
	for _, t := range l.Snapshot() {
		if !t.Resolved() {
			pending++
		}
	}
	return pending
}

// Snapshot dumps the ledger ordered by transaction id.
func (l *Ledger) Snapshot() []Transaction {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	entries, err := l.store.Dump()
	if err != nil {
		return nil
	}
	transactions := make([]Transaction, 0, len(entries))
	for _, entry := range entries {
		transactions = append(transactions, entry.Value)
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].ID < transactions[j].ID
	})
	return transactions
}
