// Package harness processes single instructions in isolation and checks
// their outcome.
//
// A Harness owns a program loader and an executor. Each call to Process
// builds a fresh account store and compute meter, so calls share nothing
// but the registered programs.
//
//	h, _ := harness.New(programID, "test_program_primary")
//	res, report := h.ProcessAndValidate(ix, accs,
//		harness.Success(),
//		harness.ComputeUnits(146),
//		harness.Account(key).Data(data).Build(),
//	)
package harness

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/config"
	"github.com/fortiblox/X1-Harness/pkg/log"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/executor"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/loader"
)

var logger = log.NewLogger("harness")

type options struct {
	computeUnitLimit uint64
	rent             accounts.Rent
	policy           instruction.Policy
	cacheSize        int
	resolver         loader.Resolver
}

// Option configures a Harness.
type Option func(*options)

// WithComputeUnitLimit sets the per-instruction compute budget.
func WithComputeUnitLimit(limit uint64) Option {
	return func(o *options) {
		o.computeUnitLimit = limit
	}
}

// WithRent overrides the rent parameters.
func WithRent(rent accounts.Rent) Option {
	return func(o *options) {
		o.rent = rent
	}
}

// WithPolicy overrides the error classification policy used by checks.
func WithPolicy(policy instruction.Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithProgramCacheSize sets how many loaded programs are kept.
func WithProgramCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithResolver sets how program artifacts are resolved.
func WithResolver(r loader.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// Harness processes instructions against caller-supplied accounts.
type Harness struct {
	programID        types.Pubkey
	loader           *loader.Loader
	exec             *executor.Executor
	computeUnitLimit uint64
	evaluator        Evaluator
}

// New creates a harness with the program under test registered at
// programID from artifact.
func New(programID types.Pubkey, artifact string, opts ...Option) (*Harness, error) {
	o := options{
		computeUnitLimit: svm.CUDefault,
		rent:             accounts.DefaultRent(),
		policy:           instruction.DefaultPolicy(),
		cacheSize:        loader.DefaultCacheSize,
		resolver:         loader.DefaultResolver(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	l, err := loader.NewLoader(o.resolver, o.cacheSize)
	if err != nil {
		return nil, err
	}
	h := &Harness{
		programID:        programID,
		loader:           l,
		exec:             executor.New(l, executor.WithRent(o.rent)),
		computeUnitLimit: o.computeUnitLimit,
		evaluator:        Evaluator{Policy: o.policy, Rent: o.rent},
	}
	if err := h.AddProgram(programID, artifact); err != nil {
		return nil, err
	}
	return h, nil
}

// NewFromConfig creates a harness from loaded configuration.
func NewFromConfig(cfg *config.Config, programID types.Pubkey, artifact string) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := instruction.PolicyFromNames(cfg.Errors.InstructionKinds)
	if err != nil {
		return nil, errors.Wrap(err, "errors.instruction_kinds")
	}
	return New(programID, artifact,
		WithComputeUnitLimit(cfg.ComputeUnitLimit),
		WithProgramCacheSize(cfg.ProgramCacheSize),
		WithPolicy(policy),
		WithRent(accounts.Rent{
			LamportsPerByteYear: cfg.Rent.LamportsPerByteYear,
			ExemptionThreshold:  cfg.Rent.ExemptionThreshold,
		}),
	)
}

// AddProgram registers another program, typically a CPI target.
func (h *Harness) AddProgram(id types.Pubkey, artifact string) error {
	return h.loader.Register(id, []byte(artifact))
}

// ProgramRef names a registered program and its artifact.
type ProgramRef struct {
	ID       types.Pubkey
	Artifact string
}

// Programs lists every registered program in id order.
func (h *Harness) Programs() []ProgramRef {
	ids := h.loader.Programs()
	refs := make([]ProgramRef, 0, len(ids))
	for _, id := range ids {
		if artifact, ok := h.loader.Artifact(id); ok {
			refs = append(refs, ProgramRef{ID: id, Artifact: string(artifact)})
		}
	}
	return refs
}

// HasProgram reports whether id is registered.
func (h *Harness) HasProgram(id types.Pubkey) bool {
	return h.loader.IsRegistered(id)
}

// ProgramID returns the id of the program under test.
func (h *Harness) ProgramID() types.Pubkey {
	return h.programID
}

// Rent returns the rent parameters in effect.
func (h *Harness) Rent() accounts.Rent {
	return h.exec.Rent()
}

// ComputeUnitLimit returns the per-instruction compute budget.
func (h *Harness) ComputeUnitLimit() uint64 {
	return h.computeUnitLimit
}

// Evaluator returns the evaluator used by ProcessAndValidate.
func (h *Harness) Evaluator() Evaluator {
	return h.evaluator
}

// Process runs ix against deep copies of accs. The caller's accounts are
// never modified.
func (h *Harness) Process(ix instruction.Instruction, accs []accounts.KeyedAccount) *Result {
	start := time.Now()

	store := accounts.NewStore(accs)
	meter := svm.NewComputeMeter(h.computeUnitLimit)
	logs, err := h.exec.Process(ix, store, meter)

	res := buildResult(err, meter, store, accs)
	res.Logs = logs
	res.ExecutionTime = time.Since(start)

	entry := logger.WithField("program", ix.ProgramID.Short()).WithField("units", res.ComputeUnitsConsumed)
	if res.Err != nil {
		entry.Debugf("instruction failed: %v", res.Err)
	} else {
		entry.Debug("instruction succeeded")
	}
	return res
}

// ProcessAndValidate runs ix and evaluates checks against the result.
func (h *Harness) ProcessAndValidate(
	ix instruction.Instruction,
	accs []accounts.KeyedAccount,
	checks ...Check,
) (*Result, Report) {
	res := h.Process(ix, accs)
	return res, h.evaluator.Evaluate(res, checks...)
}

// SystemProgramAccount returns the keyed System Program account for
// instructions that list it.
func SystemProgramAccount() accounts.KeyedAccount {
	return accounts.Keyed(types.SystemProgramAddr, &accounts.Account{
		Lamports:   1,
		Data:       []byte("system_program"),
		Owner:      types.NativeLoaderAddr,
		Executable: true,
	})
}

// ProgramAccount returns an executable account for a registered program.
func ProgramAccount(id types.Pubkey) accounts.KeyedAccount {
	// Upgradeable loader program state: tag 2, then the programdata address.
	data := make([]byte, 4+types.PubkeySize)
	data[0] = 2
	return accounts.Keyed(id, &accounts.Account{
		Lamports:   accounts.DefaultRent().MinimumBalance(len(data)),
		Data:       data,
		Owner:      types.BPFLoaderUpgradeableAddr,
		Executable: true,
	})
}
