// Package executor runs instructions against an account store.
//
// A top-level call opens a frame at stack height 1. Each frame:
// - resolves the program (native builtin or loader registration)
// - charges the entry cost
// - decodes the opcode and checks its required signers
// - runs the opcode handler, which may invoke other programs
// - validates the frame's accounts and commits its store layer
//
// Frames work on their own store layer, so a failure anywhere leaves the
// caller's accounts exactly as they were. All frames draw from one compute
// meter.
package executor

import (
	"github.com/cockroachdb/errors"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/log"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/loader"
	"github.com/fortiblox/X1-Harness/pkg/svm/program"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/system"
)

var logger = log.NewLogger("executor")

// Executor dispatches instructions to programs.
type Executor struct {
	loader   *loader.Loader
	builtins map[types.Pubkey]program.Builtin
	rent     accounts.Rent
}

// Option configures an Executor.
type Option func(*Executor)

// WithRent overrides the rent parameters.
func WithRent(rent accounts.Rent) Option {
	return func(e *Executor) {
		e.rent = rent
	}
}

// WithBuiltin adds or replaces a native program.
func WithBuiltin(b program.Builtin) Option {
	return func(e *Executor) {
		e.builtins[b.ID()] = b
	}
}

// New creates an executor that resolves registered programs through l.
// The System Program is always available.
func New(l *loader.Loader, opts ...Option) *Executor {
	e := &Executor{
		loader:   l,
		builtins: make(map[types.Pubkey]program.Builtin),
		rent:     accounts.DefaultRent(),
	}
	sys := system.NewProcessor()
	e.builtins[sys.ID()] = sys
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rent returns the rent parameters in effect.
func (e *Executor) Rent() accounts.Rent {
	return e.rent
}

// Loader returns the program loader.
func (e *Executor) Loader() *loader.Loader {
	return e.loader
}

// Process runs ix as a top-level instruction against store, charging meter.
// It returns the program log and nil on success, or an *instruction.Error.
// On success store holds the committed result; on failure it is unchanged.
func (e *Executor) Process(
	ix instruction.Instruction,
	store *accounts.Store,
	meter *svm.ComputeMeter,
) ([]string, error) {
	tx := &transaction{meter: meter}

	for _, meta := range ix.Accounts {
		if !store.Has(meta.Pubkey) {
			logger.Debugf("instruction account %s was not supplied", meta.Pubkey)
			return tx.logs, instruction.ErrNotEnoughAccountKeys
		}
	}

	err := e.invoke(tx, ix, store, 1)
	return tx.logs, err
}

// resolve finds the program for id. Exactly one of the returned programs
// is non-nil when err is nil.
func (e *Executor) resolve(id types.Pubkey) (program.Builtin, program.Program, error) {
	if b, ok := e.builtins[id]; ok {
		return b, nil, nil
	}
	prog, err := e.loader.Load(id)
	if err != nil {
		return nil, nil, err
	}
	return nil, prog, nil
}

// isLoadable reports whether id can be invoked given its supplied account.
func (e *Executor) isLoadable(id types.Pubkey, account *accounts.Account) bool {
	if _, ok := e.builtins[id]; ok {
		return true
	}
	return e.loader.IsRegistered(id) && account.Executable && types.IsLoader(account.Owner)
}

// invoke runs one frame at the given stack height over a fresh layer of
// parent and commits the layer on success.
func (e *Executor) invoke(
	tx *transaction,
	ix instruction.Instruction,
	parent *accounts.Store,
	height int,
) error {
	builtin, prog, err := e.resolve(ix.ProgramID)
	if err != nil {
		tx.log("Program %s is not supported", ix.ProgramID)
		return instruction.ErrUnsupportedProgram
	}

	tx.log("Program %s invoke [%d]", ix.ProgramID, height)
	startConsumed := tx.meter.Consumed()
	startRemaining := tx.meter.Remaining()

	layer := parent.Fork()
	ctx := newInvokeContext(e, tx, ix, layer, height)

	if builtin != nil {
		err = ctx.runBuiltin(builtin)
	} else {
		err = ctx.run(prog)
	}
	if err == nil {
		err = ctx.verify()
	}

	if prog != nil {
		tx.log("Program %s consumed %d of %d compute units",
			ix.ProgramID, tx.meter.Consumed()-startConsumed, startRemaining)
	}
	if err != nil {
		tx.log("Program %s failed: %v", ix.ProgramID, err)
		return err
	}
	tx.log("Program %s success", ix.ProgramID)

	if err := layer.Commit(); err != nil {
		return errors.Wrap(err, "commit frame")
	}
	return nil
}

func (ctx *invokeContext) runBuiltin(b program.Builtin) error {
	if err := ctx.Consume(b.EntryCost()); err != nil {
		return err
	}
	return b.Process(ctx, ctx.ix.Data)
}

func (ctx *invokeContext) run(prog program.Program) error {
	if err := ctx.Consume(svm.EntryCost(len(ctx.ix.Accounts), len(ctx.ix.Data))); err != nil {
		return err
	}

	op, payload, ok := prog.Decode(ctx.ix.Data)
	if !ok {
		return instruction.ErrInvalidInstructionData
	}

	for _, index := range prog.Signers(op) {
		if err := ctx.checkSigner(index); err != nil {
			return err
		}
	}

	switch op {
	case program.OpWriteData:
		return ctx.writeData(payload)
	case program.OpTransfer:
		return ctx.transfer(payload)
	case program.OpCloseAccount:
		return ctx.closeAccount()
	case program.OpInvoke:
		return ctx.invokeTarget(payload)
	default:
		return instruction.ErrInvalidInstructionData
	}
}
