package executor

import (
	"fmt"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/program"
)

// transaction is the state shared by every frame of one top-level call.
type transaction struct {
	meter *svm.ComputeMeter
	logs  []string
}

func (tx *transaction) log(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	tx.logs = append(tx.logs, line)
	logger.Debug(line)
}

// invokeContext is one program frame: the instruction being run, its
// store layer and the accounts resolved in it.
type invokeContext struct {
	exec      *Executor
	tx        *transaction
	programID types.Pubkey
	ix        instruction.Instruction
	store     *accounts.Store
	entries   []*accounts.Entry
	height    int

	// merged privileges per key across duplicate references
	signer   map[types.Pubkey]bool
	writable map[types.Pubkey]bool

	// pre-execution copies, one per distinct key, in first-seen order
	preKeys []types.Pubkey
	pre     map[types.Pubkey]*accounts.Account
}

var _ program.InvokeContext = (*invokeContext)(nil)

func newInvokeContext(
	exec *Executor,
	tx *transaction,
	ix instruction.Instruction,
	store *accounts.Store,
	height int,
) *invokeContext {
	ctx := &invokeContext{
		exec:      exec,
		tx:        tx,
		programID: ix.ProgramID,
		ix:        ix,
		store:     store,
		entries:   store.Load(ix.Keys()),
		height:    height,
		signer:    make(map[types.Pubkey]bool, len(ix.Accounts)),
		writable:  make(map[types.Pubkey]bool, len(ix.Accounts)),
		pre:       make(map[types.Pubkey]*accounts.Account, len(ix.Accounts)),
	}
	for i, meta := range ix.Accounts {
		ctx.signer[meta.Pubkey] = ctx.signer[meta.Pubkey] || meta.IsSigner
		ctx.writable[meta.Pubkey] = ctx.writable[meta.Pubkey] || meta.IsWritable
		if _, ok := ctx.pre[meta.Pubkey]; !ok {
			ctx.preKeys = append(ctx.preKeys, meta.Pubkey)
			ctx.pre[meta.Pubkey] = ctx.entries[i].Account.Clone()
		}
	}
	return ctx
}

// ProgramID implements program.InvokeContext.
func (ctx *invokeContext) ProgramID() types.Pubkey {
	return ctx.programID
}

// NumAccounts implements program.InvokeContext.
func (ctx *invokeContext) NumAccounts() int {
	return len(ctx.entries)
}

// Account implements program.InvokeContext.
func (ctx *invokeContext) Account(index int) (program.Account, error) {
	return ctx.borrow(index)
}

func (ctx *invokeContext) borrow(index int) (*borrowedAccount, error) {
	if index < 0 || index >= len(ctx.entries) {
		return nil, instruction.ErrNotEnoughAccountKeys
	}
	return &borrowedAccount{ctx: ctx, index: index, entry: ctx.entries[index]}, nil
}

// Rent implements program.InvokeContext.
func (ctx *invokeContext) Rent() accounts.Rent {
	return ctx.exec.rent
}

// Consume implements program.InvokeContext.
func (ctx *invokeContext) Consume(units uint64) error {
	if err := ctx.tx.meter.Consume(units); err != nil {
		return instruction.ErrComputeBudgetExceeded
	}
	return nil
}

// Log implements program.InvokeContext.
func (ctx *invokeContext) Log(format string, args ...interface{}) {
	ctx.tx.log("Program log: "+format, args...)
}

// current returns the live account for key, which must be one of the
// instruction accounts.
func (ctx *invokeContext) current(key types.Pubkey) *accounts.Account {
	return ctx.entries[ctx.ix.IndexOf(key)].Account
}

func (ctx *invokeContext) isSigner(key types.Pubkey) bool {
	return ctx.signer[key]
}

func (ctx *invokeContext) isWritable(key types.Pubkey) bool {
	return ctx.writable[key]
}

// checkSigner charges one account check and verifies that the account at
// index signed the instruction.
func (ctx *invokeContext) checkSigner(index int) error {
	if err := ctx.Consume(svm.CUAccountCheck); err != nil {
		return err
	}
	if index >= len(ctx.ix.Accounts) {
		return instruction.ErrNotEnoughAccountKeys
	}
	if !ctx.ix.Accounts[index].IsSigner {
		ctx.Log("account %s must sign", ctx.ix.Accounts[index].Pubkey)
		return instruction.ErrMissingRequiredSignature
	}
	return nil
}
