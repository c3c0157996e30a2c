package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/config"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/cpitarget"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/primary"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/system"
)

func newHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h, err := New(types.NewUniquePubkey(), primary.ArtifactName, opts...)
	require.NoError(t, err)
	return h
}

func requirePassed(t *testing.T, report Report) {
	t.Helper()
	require.True(t, report.Passed(), report.String())
}

func TestWriteData(t *testing.T) {
	h := newHarness(t)
	key := types.NewUniquePubkey()
	data := []byte{1, 2, 3, 4, 5}
	account := accounts.NewAccount(h.Rent().MinimumBalance(len(data)), len(data), h.ProgramID())

	t.Run("success", func(t *testing.T) {
		ix := instruction.New(h.ProgramID(), primary.WriteData(data), instruction.NewMeta(key, true))
		res, report := h.ProcessAndValidate(ix, []accounts.KeyedAccount{accounts.Keyed(key, account)},
			Success(),
			ComputeUnits(146),
			Account(key).Data(data).Lamports(account.Lamports).Owner(h.ProgramID()).Space(5).RentExempt().Build(),
		)
		requirePassed(t, report)
		assert.True(t, res.IsSuccess())
		assert.Equal(t, make([]byte, 5), account.Data, "caller accounts are never modified")
	})

	t.Run("missing signature", func(t *testing.T) {
		ix := instruction.New(h.ProgramID(), primary.WriteData(data), instruction.NewMeta(key, false))
		res, report := h.ProcessAndValidate(ix, []accounts.KeyedAccount{accounts.Keyed(key, account)},
			Err(instruction.ErrMissingRequiredSignature),
			ComputeUnits(121),
		)
		requirePassed(t, report)
		assert.True(t, res.Account(key).Equal(account))
	})

	t.Run("data too large", func(t *testing.T) {
		ix := instruction.New(h.ProgramID(), primary.WriteData([]byte{1, 1, 1, 1, 1, 1}), instruction.NewMeta(key, true))
		_, report := h.ProcessAndValidate(ix, []accounts.KeyedAccount{accounts.Keyed(key, account)},
			Err(instruction.ErrAccountDataTooSmall),
			ComputeUnits(127),
			Account(key).Data(make([]byte, 5)).Build(),
		)
		requirePassed(t, report)
	})
}

func TestTransfer(t *testing.T) {
	h := newHarness(t)
	payer := types.NewUniquePubkey()
	recipient := types.NewUniquePubkey()
	amount := uint64(2_000_000)

	ix := instruction.New(h.ProgramID(), primary.Transfer(amount),
		instruction.NewMeta(payer, true),
		instruction.NewMeta(recipient, false),
		instruction.NewReadonlyMeta(types.SystemProgramAddr, false),
	)

	t.Run("success", func(t *testing.T) {
		accs := []accounts.KeyedAccount{
			accounts.Keyed(payer, accounts.NewAccount(100_000_000, 0, types.SystemProgramAddr)),
			accounts.Keyed(recipient, accounts.NewAccount(0, 0, types.SystemProgramAddr)),
			SystemProgramAccount(),
		}
		res, report := h.ProcessAndValidate(ix, accs,
			Success(),
			ComputeUnits(1356),
			Account(payer).Lamports(98_000_000).Build(),
			Account(recipient).Lamports(amount).RentExempt().Build(),
		)
		requirePassed(t, report)
		require.Len(t, res.ResultingAccounts, 3)
		assert.Equal(t, types.SystemProgramAddr, res.ResultingAccounts[2].Pubkey)
		assert.NotEmpty(t, res.Logs)
	})

	t.Run("payer has no lamports", func(t *testing.T) {
		accs := []accounts.KeyedAccount{
			accounts.Keyed(payer, accounts.Default()),
			accounts.Keyed(recipient, accounts.NewAccount(0, 0, types.SystemProgramAddr)),
			SystemProgramAccount(),
		}
		res, report := h.ProcessAndValidate(ix, accs,
			Err(system.ErrResultWithNegativeLamports),
			Err(instruction.Custom(1)),
			ComputeUnits(1336),
			Account(payer).Lamports(0).Build(),
			Account(recipient).Lamports(0).Build(),
		)
		requirePassed(t, report)
		require.Len(t, res.ResultingAccounts, len(accs))
		for i, k := range accs {
			assert.Equal(t, k.Pubkey, res.ResultingAccounts[i].Pubkey)
			assert.True(t, k.Account.Equal(res.ResultingAccounts[i].Account))
			assert.NotSame(t, k.Account, res.ResultingAccounts[i].Account)
		}
	})
}

func TestCloseAccount(t *testing.T) {
	h := newHarness(t)
	key := types.NewUniquePubkey()
	account := accounts.NewAccount(50_000_000, 50, h.ProgramID())

	accs := []accounts.KeyedAccount{
		accounts.Keyed(key, account),
		accounts.Keyed(types.IncineratorAddr, accounts.Default()),
		SystemProgramAccount(),
	}
	metas := func(signer bool) []instruction.AccountMeta {
		return []instruction.AccountMeta{
			instruction.NewMeta(key, signer),
			instruction.NewMeta(types.IncineratorAddr, false),
			instruction.NewReadonlyMeta(types.SystemProgramAddr, false),
		}
	}

	t.Run("success", func(t *testing.T) {
		ix := instruction.New(h.ProgramID(), primary.CloseAccount(), metas(true)...)
		_, report := h.ProcessAndValidate(ix, accs,
			Success(),
			ComputeUnits(216),
			Account(key).Closed().Lamports(0).Space(0).Owner(types.SystemProgramAddr).Build(),
			Account(types.IncineratorAddr).Lamports(50_000_000).Build(),
		)
		requirePassed(t, report)
	})

	t.Run("missing signature", func(t *testing.T) {
		ix := instruction.New(h.ProgramID(), primary.CloseAccount(), metas(false)...)
		_, report := h.ProcessAndValidate(ix, accs,
			Err(instruction.ErrMissingRequiredSignature),
			ComputeUnits(136),
			Account(key).Lamports(50_000_000).Space(50).Build(),
		)
		requirePassed(t, report)
	})
}

func TestInvoke(t *testing.T) {
	h := newHarness(t)
	target := types.NewUniquePubkey()
	key := types.NewUniquePubkey()
	data := []byte{1, 2, 3, 4, 5}
	account := accounts.NewAccount(h.Rent().MinimumBalance(len(data)), len(data), target)

	ix := instruction.New(h.ProgramID(), primary.Invoke(target, data),
		instruction.NewMeta(key, true),
		instruction.NewReadonlyMeta(target, false),
	)
	accs := []accounts.KeyedAccount{accounts.Keyed(key, account), ProgramAccount(target)}

	t.Run("target absent", func(t *testing.T) {
		_, report := h.ProcessAndValidate(ix, accs[:1],
			Err(instruction.ErrNotEnoughAccountKeys),
			ComputeUnits(0),
		)
		requirePassed(t, report)
	})

	t.Run("target not registered", func(t *testing.T) {
		res, report := h.ProcessAndValidate(ix, accs,
			Err(instruction.ErrInvalidAccountData),
			ComputeUnits(1173),
		)
		requirePassed(t, report)
		assert.Contains(t, res.Logs, "Program is not cached")
	})

	require.NoError(t, h.AddProgram(target, cpitarget.ArtifactName))

	t.Run("privilege escalation", func(t *testing.T) {
		unsigned := ix.Clone()
		unsigned.Accounts[0].IsSigner = false
		_, report := h.ProcessAndValidate(unsigned, accs,
			InstructionErr(instruction.ErrPrivilegeEscalation),
			ComputeUnits(1178),
		)
		requirePassed(t, report)
	})

	t.Run("success", func(t *testing.T) {
		_, report := h.ProcessAndValidate(ix, accs,
			Success(),
			ComputeUnits(1328),
			Account(key).Data(data).Owner(target).Build(),
			Account(target).Executable(true).Build(),
		)
		requirePassed(t, report)
	})

	t.Run("shared budget", func(t *testing.T) {
		small, err := New(h.ProgramID(), primary.ArtifactName, WithComputeUnitLimit(1300))
		require.NoError(t, err)
		require.NoError(t, small.AddProgram(target, cpitarget.ArtifactName))

		_, report := small.ProcessAndValidate(ix, accs,
			InstructionErr(instruction.ErrComputeBudgetExceeded),
			ComputeUnits(1300),
			Account(key).Data(make([]byte, 5)).Build(),
		)
		requirePassed(t, report)
	})
}

func TestEvaluateReportsEveryFailure(t *testing.T) {
	h := newHarness(t)
	key := types.NewUniquePubkey()
	account := accounts.NewAccount(h.Rent().MinimumBalance(5), 5, h.ProgramID())
	ix := instruction.New(h.ProgramID(), primary.WriteData([]byte{7}), instruction.NewMeta(key, true))
	res := h.Process(ix, []accounts.KeyedAccount{accounts.Keyed(key, account)})

	checks := []Check{
		Err(instruction.ErrInvalidArgument),
		ComputeUnits(1),
		Success(),
		Account(key).Data([]byte{8}).Lamports(1).Executable(true).Build(),
		Account(types.NewUniquePubkey()).Build(),
	}
	first := h.Evaluator().Evaluate(res, checks...)
	second := h.Evaluator().Evaluate(res, checks...)

	assert.False(t, first.Passed())
	assert.Equal(t, 5, first.Checked())
	require.Len(t, first.Failures(), 4)
	assert.Equal(t, first, second, "evaluation is idempotent")
	assert.Contains(t, first.Failures()[2].Reason, "data 0700000000, want 08")
	assert.Contains(t, first.Failures()[2].Reason, "executable false, want true")
	assert.Contains(t, first.Failures()[3].Reason, "not found")
	assert.ErrorContains(t, first.Err(), "4 of 5 checks failed")

	assert.NoError(t, Evaluate(res, Success()).Err())
}

func TestErrorClass(t *testing.T) {
	res := &Result{Err: instruction.NewError(instruction.KindPrivilegeEscalation)}

	assert.False(t, Evaluate(res, Err(instruction.ErrPrivilegeEscalation)).Passed())
	assert.True(t, Evaluate(res, InstructionErr(instruction.ErrPrivilegeEscalation)).Passed())

	custom := &Result{Err: instruction.Custom(1)}
	assert.True(t, Evaluate(custom, Err(instruction.Custom(1))).Passed())
	assert.False(t, Evaluate(custom, Err(instruction.Custom(2))).Passed())
	assert.False(t, Evaluate(&Result{}, Err(instruction.Custom(1))).Passed())

	ev := Evaluator{Policy: instruction.NewPolicy(instruction.KindCustom), Rent: accounts.DefaultRent()}
	assert.True(t, ev.Evaluate(custom, InstructionErr(instruction.Custom(1))).Passed())
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ComputeUnitLimit = 1000
	cfg.Errors.InstructionKinds = []string{"Custom"}

	h, err := NewFromConfig(cfg, types.NewUniquePubkey(), primary.ArtifactName)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), h.ComputeUnitLimit())
	assert.Equal(t, accounts.DefaultRent(), h.Rent())
	assert.Equal(t, instruction.ClassInstruction, h.Evaluator().Policy.Classify(instruction.KindCustom))

	cfg.Errors.InstructionKinds = []string{"NotAKind"}
	_, err = NewFromConfig(cfg, types.NewUniquePubkey(), primary.ArtifactName)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "NotAKind")

	cfg = config.Default()
	cfg.ComputeUnitLimit = 0
	_, err = NewFromConfig(cfg, types.NewUniquePubkey(), primary.ArtifactName)
	assert.Error(t, err)
}

func TestNewRejectsUnknownArtifact(t *testing.T) {
	_, err := New(types.NewUniquePubkey(), "no_such_program")
	assert.Error(t, err)
}
