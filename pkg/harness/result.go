package harness

import (
	"time"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
)

// Result is the outcome of one processed instruction.
type Result struct {
	// Err is nil on success.
	Err *instruction.Error

	// ComputeUnitsConsumed is recorded on success and failure alike.
	ComputeUnitsConsumed uint64

	// ResultingAccounts holds deep copies of every supplied account, in
	// input order. On failure it equals the input.
	ResultingAccounts []accounts.KeyedAccount

	// Logs is the program log.
	Logs []string

	// ExecutionTime is the wall time spent processing.
	ExecutionTime time.Duration
}

// IsSuccess reports whether the instruction succeeded.
func (r *Result) IsSuccess() bool {
	return r.Err == nil
}

// Account returns the resulting state of key, or nil when key was not
// supplied.
func (r *Result) Account(key types.Pubkey) *accounts.Account {
	for i := len(r.ResultingAccounts) - 1; i >= 0; i-- {
		if r.ResultingAccounts[i].Pubkey == key {
			return r.ResultingAccounts[i].Account
		}
	}
	return nil
}

// buildResult turns a processor outcome into a Result.
func buildResult(
	err error,
	meter *svm.ComputeMeter,
	store *accounts.Store,
	input []accounts.KeyedAccount,
) *Result {
	res := &Result{ComputeUnitsConsumed: meter.Consumed()}

	if err == nil {
		keys := make([]types.Pubkey, len(input))
		for i, k := range input {
			keys[i] = k.Pubkey
		}
		res.ResultingAccounts = store.Snapshot(keys)
		return res
	}

	ixErr, ok := instruction.AsError(err)
	if !ok {
		logger.WithError(err).Error("processor returned a non-instruction error")
		ixErr = instruction.NewError(instruction.KindInvalidAccountData)
	}
	res.Err = &instruction.Error{Kind: ixErr.Kind, Code: ixErr.Code}
	res.ResultingAccounts = accounts.CloneAll(input)
	return res
}
