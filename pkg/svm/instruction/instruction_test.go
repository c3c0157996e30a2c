package instruction

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Harness/internal/types"
)

func TestMetas(t *testing.T) {
	key := types.NewUniquePubkey()

	m := NewMeta(key, true)
	assert.True(t, m.IsSigner)
	assert.True(t, m.IsWritable)

	r := NewReadonlyMeta(key, false)
	assert.False(t, r.IsSigner)
	assert.False(t, r.IsWritable)
}

func TestInstructionKeys(t *testing.T) {
	a, b := types.NewUniquePubkey(), types.NewUniquePubkey()
	ix := New(types.NewUniquePubkey(), []byte{1, 2}, NewMeta(a, true), NewReadonlyMeta(b, false))

	assert.Equal(t, []types.Pubkey{a, b}, ix.Keys())
	assert.Equal(t, 1, ix.IndexOf(b))
	assert.Equal(t, -1, ix.IndexOf(types.NewUniquePubkey()))

	c := ix.Clone()
	c.Data[0] = 9
	c.Accounts[0].IsSigner = false
	assert.Equal(t, byte(1), ix.Data[0])
	assert.True(t, ix.Accounts[0].IsSigner)
}

func TestErrorIdentity(t *testing.T) {
	err := errors.Wrap(NewError(KindAccountDataTooSmall), "write")
	assert.True(t, errors.Is(err, ErrAccountDataTooSmall))
	assert.False(t, errors.Is(err, ErrInvalidAccountData))

	ixErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAccountDataTooSmall, ixErr.Kind)

	assert.True(t, errors.Is(Custom(1), Custom(1)))
	assert.False(t, errors.Is(Custom(1), Custom(2)))
	assert.Equal(t, "custom program error: 0x1", Custom(1).Error())

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorEqual(t *testing.T) {
	var none *Error
	assert.True(t, none.Equal(nil))
	assert.False(t, none.Equal(ErrCallDepth))
	assert.True(t, NewError(KindCallDepth).Equal(ErrCallDepth))
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	k, err := ParseKind("privilegeescalation")
	require.NoError(t, err)
	assert.Equal(t, KindPrivilegeEscalation, k)

	_, err = ParseKind("NoSuchKind")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	program := []Kind{
		KindCustom, KindInvalidArgument, KindInvalidInstructionData, KindInvalidAccountData,
		KindAccountDataTooSmall, KindMissingRequiredSignature, KindNotEnoughAccountKeys,
		KindUnsupportedProgram, KindArithmeticOverflow,
	}
	for _, k := range program {
		assert.Equal(t, ClassProgram, p.Classify(k), k.String())
	}

	instr := []Kind{
		KindPrivilegeEscalation, KindComputeBudgetExceeded, KindCallDepth,
		KindReadonlyDataModified, KindUnbalancedInstruction, KindInsufficientFundsForRent,
	}
	for _, k := range instr {
		assert.Equal(t, ClassInstruction, p.Classify(k), k.String())
	}
}

func TestPolicyFromNames(t *testing.T) {
	p, err := PolicyFromNames([]string{"PrivilegeEscalation", "MissingRequiredSignature"})
	require.NoError(t, err)
	assert.Equal(t, ClassInstruction, p.Classify(KindMissingRequiredSignature))
	assert.Equal(t, ClassProgram, p.Classify(KindComputeBudgetExceeded))
	assert.Equal(t, []Kind{KindMissingRequiredSignature, KindPrivilegeEscalation}, p.InstructionKinds())

	_, err = PolicyFromNames([]string{"bogus"})
	assert.Error(t, err)
}
