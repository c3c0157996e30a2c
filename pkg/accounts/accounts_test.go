package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Harness/internal/types"
)

func TestAccountBinary(t *testing.T) {
	account := &Account{
		Lamports:   1000000000,
		Data:       []byte("test data"),
		Owner:      types.NewUniquePubkey(),
		Executable: true,
		RentEpoch:  100,
	}

	data, err := account.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, account.EncodedLen())

	var restored Account
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.True(t, restored.Equal(account))

	empty, err := Default().MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, restored.UnmarshalBinary(empty))
	assert.True(t, restored.Equal(Default()))
	assert.NotNil(t, restored.Data)
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	data, err := NewAccount(5, 4, types.SystemProgramAddr).MarshalBinary()
	require.NoError(t, err)

	badFlag := append([]byte{}, data...)
	badFlag[16] = 2

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", data[:10]},
		{"truncated data", data[:len(data)-1]},
		{"trailing bytes", append(append([]byte{}, data...), 0)},
		{"executable flag", badFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := NewAccount(7, 1, types.SystemProgramAddr)
			err := kept.UnmarshalBinary(tt.data)
			assert.ErrorIs(t, err, ErrInvalidData)
			assert.Equal(t, uint64(7), kept.Lamports)
		})
	}
}

func TestAccountClone(t *testing.T) {
	original := NewAccount(42, 3, types.NewUniquePubkey())
	clone := original.Clone()
	clone.Data[0] = 7
	clone.Lamports = 1

	assert.Equal(t, byte(0), original.Data[0])
	assert.Equal(t, uint64(42), original.Lamports)

	var none *Account
	assert.Nil(t, none.Clone())
}

func TestClosedPredicate(t *testing.T) {
	assert.True(t, Default().IsClosed())
	assert.True(t, (&Account{Owner: types.SystemProgramAddr}).IsClosed())

	assert.False(t, NewAccount(0, 1, types.SystemProgramAddr).IsClosed())
	assert.False(t, NewAccount(1, 0, types.SystemProgramAddr).IsClosed())
	assert.False(t, NewAccount(0, 0, types.NewUniquePubkey()).IsClosed())
}

func TestEqualTreatsNilDataAsEmpty(t *testing.T) {
	a := &Account{Owner: types.SystemProgramAddr}
	b := Default()
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
	b.RentEpoch = 1
	assert.False(t, a.Equal(b))
}

func TestCloneAll(t *testing.T) {
	key := types.NewUniquePubkey()
	list := []KeyedAccount{Keyed(key, NewAccount(1, 1, key))}
	copied := CloneAll(list)
	copied[0].Account.Data[0] = 1
	assert.Equal(t, byte(0), list[0].Account.Data[0])
	assert.Equal(t, key, copied[0].Pubkey)
}

func TestAccountHash(t *testing.T) {
	key := types.NewUniquePubkey()
	a := NewAccount(10, 2, types.SystemProgramAddr)

	h1 := ComputeAccountHash(key, a)
	assert.False(t, h1.IsZero())
	assert.Equal(t, h1, ComputeAccountHash(key, a.Clone()))

	b := a.Clone()
	b.Data[1] = 1
	assert.NotEqual(t, h1, ComputeAccountHash(key, b))
	assert.NotEqual(t, h1, ComputeAccountHash(types.NewUniquePubkey(), a))

	c := a.Clone()
	c.Executable = true
	assert.NotEqual(t, h1, ComputeAccountHash(key, c))

	assert.True(t, ComputeAccountHash(key, Default()).IsZero())
	assert.True(t, ComputeAccountHash(key, nil).IsZero())
}

func TestStateHashOrderIndependent(t *testing.T) {
	k1, k2, k3 := types.NewUniquePubkey(), types.NewUniquePubkey(), types.NewUniquePubkey()
	a := []KeyedAccount{
		Keyed(k1, NewAccount(1, 0, k1)),
		Keyed(k2, NewAccount(2, 0, k2)),
		Keyed(k3, NewAccount(3, 0, k3)),
	}
	b := []KeyedAccount{a[2], a[0], a[1]}
	assert.Equal(t, ComputeStateHash(a), ComputeStateHash(b))

	// Last duplicate wins.
	dup := append([]KeyedAccount{Keyed(k1, NewAccount(9, 0, k1))}, a...)
	assert.Equal(t, ComputeStateHash(a), ComputeStateHash(dup))

	assert.True(t, ComputeStateHash(nil).IsZero())
}

func TestMerkleRoot(t *testing.T) {
	h := types.ComputeHash([]byte("leaf"))
	single := ComputeMerkleRoot([]types.Hash{h})
	assert.Equal(t, computeLeafHash(h), single)

	pair := ComputeMerkleRoot([]types.Hash{h, h})
	assert.Equal(t, computeNodeHash(computeLeafHash(h), computeLeafHash(h)), pair)

	odd := ComputeMerkleRoot([]types.Hash{h, h, h})
	want := computeNodeHash(
		computeNodeHash(computeLeafHash(h), computeLeafHash(h)),
		computeNodeHash(computeLeafHash(h), types.Hash{}),
	)
	assert.Equal(t, want, odd)
}
