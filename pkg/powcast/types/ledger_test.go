package types_test

import (
	"testing"

	"github.com/jabolina/go-powcast/pkg/powcast/definition"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
	"github.com/stretchr/testify/require"
)

func newLedger() *types.Ledger {
	return types.NewLedger(definition.NewDefaultStorage())
}

func TestLedger_OpenAndResolve(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Open(1, 3))

	entry, ok := ledger.Get(1)
	require.True(t, ok)
	require.Equal(t, 3, entry.Challenge)
	require.Equal(t, types.NoWinner, entry.Winner)
	require.False(t, entry.Resolved())
	require.Equal(t, 1, ledger.Pending())

	require.NoError(t, ledger.Resolve(1, "1:70", 42))
	entry, ok = ledger.Get(1)
	require.True(t, ok)
	require.True(t, entry.Resolved())
	require.Equal(t, types.ClientID(42), entry.Winner)
	require.Equal(t, "1:70", entry.Solution)
	require.Equal(t, 0, ledger.Pending())
}

// Once a winner is recorded the triple never changes.
func TestLedger_ResolvedEntryIsImmutable(t *testing.T) {
	ledger := newLedger()
	require.NoError(t, ledger.Open(1, 1))
	require.NoError(t, ledger.Resolve(1, "1:12", 7))

	require.Equal(t, types.ErrAlreadyResolved, ledger.Resolve(1, "1:99", 9))
	require.Equal(t, types.ErrTransactionExists, ledger.Open(1, 5))

	entry, _ := ledger.Get(1)
	require.Equal(t, "1:12", entry.Solution)
	require.Equal(t, types.ClientID(7), entry.Winner)
}

func TestLedger_ResolveUnknownTransaction(t *testing.T) {
	ledger := newLedger()
	require.Equal(t, types.ErrUnknownTransaction, ledger.Resolve(5, "5:0", 1))
}

func TestLedger_SnapshotOrdered(t *testing.T) {
	ledger := newLedger()
	for id := 3; id >= 1; id-- {
		require.NoError(t, ledger.Open(types.TransactionID(id), id))
	}
	snapshot := ledger.Snapshot()
	require.Len(t, snapshot, 3)
	for i, entry := range snapshot {
		require.Equal(t, types.TransactionID(i+1), entry.ID)
	}
}
