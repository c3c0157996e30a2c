package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Harness/internal/types"
)

func TestStoreSeedCopies(t *testing.T) {
	key := types.NewUniquePubkey()
	input := NewAccount(10, 2, key)
	s := NewStore([]KeyedAccount{Keyed(key, input)})

	e := s.Load([]types.Pubkey{key})[0]
	e.Account.Data[0] = 9
	assert.Equal(t, byte(0), input.Data[0], "store must not alias caller accounts")
}

func TestStoreLastDuplicateWins(t *testing.T) {
	key := types.NewUniquePubkey()
	s := NewStore([]KeyedAccount{
		Keyed(key, NewAccount(1, 0, key)),
		Keyed(key, NewAccount(2, 0, key)),
	})
	assert.Equal(t, uint64(2), s.Snapshot([]types.Pubkey{key})[0].Account.Lamports)
	assert.Len(t, s.Keys(), 1)
}

func TestStoreAbsentKeys(t *testing.T) {
	key := types.NewUniquePubkey()
	s := NewStore(nil)

	assert.False(t, s.Has(key))
	entries := s.Load([]types.Pubkey{key, key})
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Present)
	assert.True(t, entries[0].Account.IsClosed())
	assert.Same(t, entries[0], entries[1], "duplicate references share one entry")
	assert.False(t, s.Has(key))
}

func TestForkCommit(t *testing.T) {
	key := types.NewUniquePubkey()
	s := NewStore([]KeyedAccount{Keyed(key, NewAccount(10, 0, key))})
	outer := s.Load([]types.Pubkey{key})[0]

	child := s.Fork()
	inner := child.Load([]types.Pubkey{key})[0]
	assert.NotSame(t, outer, inner)
	inner.Account.Lamports = 20

	assert.Equal(t, uint64(10), outer.Account.Lamports, "uncommitted layer is invisible to the parent")

	require.NoError(t, child.Commit())
	assert.Equal(t, uint64(20), outer.Account.Lamports, "commit updates entries held by the parent")
	assert.ErrorIs(t, child.Commit(), ErrAlreadyCommitted)
}

func TestForkDiscard(t *testing.T) {
	key := types.NewUniquePubkey()
	s := NewStore([]KeyedAccount{Keyed(key, NewAccount(10, 4, key))})

	child := s.Fork()
	e := child.Load([]types.Pubkey{key})[0]
	e.Account.Data = nil
	e.Account.Lamports = 0

	snap := s.Snapshot([]types.Pubkey{key})[0].Account
	assert.Equal(t, uint64(10), snap.Lamports)
	assert.Len(t, snap.Data, 4)
}

func TestNestedForks(t *testing.T) {
	a, b := types.NewUniquePubkey(), types.NewUniquePubkey()
	s := NewStore([]KeyedAccount{Keyed(a, NewAccount(1, 0, a)), Keyed(b, NewAccount(1, 0, b))})

	l1 := s.Fork()
	l2 := l1.Fork()
	assert.True(t, l2.Has(b))

	l2.Load([]types.Pubkey{b})[0].Account.Lamports = 5
	require.NoError(t, l2.Commit())
	assert.Equal(t, uint64(1), s.Snapshot([]types.Pubkey{b})[0].Account.Lamports)
	assert.Equal(t, uint64(5), l1.Snapshot([]types.Pubkey{b})[0].Account.Lamports)

	require.NoError(t, l1.Commit())
	assert.Equal(t, uint64(5), s.Snapshot([]types.Pubkey{b})[0].Account.Lamports)
	assert.Equal(t, uint64(1), s.Snapshot([]types.Pubkey{a})[0].Account.Lamports)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	key := types.NewUniquePubkey()
	s := NewStore([]KeyedAccount{Keyed(key, NewAccount(1, 2, key))})

	snap := s.Snapshot([]types.Pubkey{key, types.NewUniquePubkey()})
	snap[0].Account.Data[0] = 3
	assert.Equal(t, byte(0), s.Snapshot([]types.Pubkey{key})[0].Account.Data[0])
	assert.True(t, snap[1].Account.IsClosed())
}

func TestStoreHash(t *testing.T) {
	a, b := types.NewUniquePubkey(), types.NewUniquePubkey()
	list := []KeyedAccount{Keyed(a, NewAccount(1, 0, a)), Keyed(b, NewAccount(2, 0, b))}
	s := NewStore(list)
	assert.Equal(t, ComputeStateHash(list), s.Hash())

	// Absent loads do not change the digest.
	s.Load([]types.Pubkey{types.NewUniquePubkey()})
	assert.Equal(t, ComputeStateHash(list), s.Hash())

	child := s.Fork()
	child.Load([]types.Pubkey{a})[0].Account.Lamports = 7
	assert.NotEqual(t, s.Hash(), child.Hash())
}
