package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
)

type checkKind uint8

const (
	checkSuccess checkKind = iota
	checkErr
	checkComputeUnits
	checkAccount
)

// Check is one expectation about a Result.
type Check struct {
	kind    checkKind
	err     *instruction.Error
	class   instruction.Class
	units   uint64
	account *AccountCheck
}

// Success expects the instruction to succeed.
func Success() Check {
	return Check{kind: checkSuccess}
}

// Err expects a program-class failure equal to err.
func Err(err *instruction.Error) Check {
	return Check{kind: checkErr, err: err, class: instruction.ClassProgram}
}

// InstructionErr expects an instruction-class failure equal to err.
func InstructionErr(err *instruction.Error) Check {
	return Check{kind: checkErr, err: err, class: instruction.ClassInstruction}
}

// ComputeUnits expects exactly units to have been consumed.
func ComputeUnits(units uint64) Check {
	return Check{kind: checkComputeUnits, units: units}
}

func (c Check) String() string {
	switch c.kind {
	case checkSuccess:
		return "success"
	case checkErr:
		return fmt.Sprintf("%s error %v", c.class, c.err)
	case checkComputeUnits:
		return fmt.Sprintf("compute units %d", c.units)
	case checkAccount:
		return fmt.Sprintf("account %s", c.account.key)
	default:
		return "unknown check"
	}
}

// AccountCheck holds partial expectations about one resulting account.
// Unset fields are not compared.
type AccountCheck struct {
	key        types.Pubkey
	data       []byte
	lamports   *uint64
	owner      *types.Pubkey
	executable *bool
	space      *int
	closed     bool
	rentExempt bool
}

// AccountCheckBuilder builds an AccountCheck.
type AccountCheckBuilder struct {
	check AccountCheck
}

// Account starts an account check for key.
func Account(key types.Pubkey) *AccountCheckBuilder {
	return &AccountCheckBuilder{check: AccountCheck{key: key}}
}

// Data expects the account data to equal data.
func (b *AccountCheckBuilder) Data(data []byte) *AccountCheckBuilder {
	b.check.data = append([]byte{}, data...)
	return b
}

// Lamports expects the balance.
func (b *AccountCheckBuilder) Lamports(lamports uint64) *AccountCheckBuilder {
	b.check.lamports = &lamports
	return b
}

// Owner expects the owner.
func (b *AccountCheckBuilder) Owner(owner types.Pubkey) *AccountCheckBuilder {
	b.check.owner = &owner
	return b
}

// Executable expects the executable flag.
func (b *AccountCheckBuilder) Executable(executable bool) *AccountCheckBuilder {
	b.check.executable = &executable
	return b
}

// Space expects the data length.
func (b *AccountCheckBuilder) Space(space int) *AccountCheckBuilder {
	b.check.space = &space
	return b
}

// Closed expects the account to be closed.
func (b *AccountCheckBuilder) Closed() *AccountCheckBuilder {
	b.check.closed = true
	return b
}

// RentExempt expects the account to hold at least the rent-exempt minimum.
func (b *AccountCheckBuilder) RentExempt() *AccountCheckBuilder {
	b.check.rentExempt = true
	return b
}

// Build returns the check.
func (b *AccountCheckBuilder) Build() Check {
	c := b.check
	return Check{kind: checkAccount, account: &c}
}

// Failure describes one check that did not hold.
type Failure struct {
	Check  string
	Reason string
}

func (f Failure) String() string {
	return f.Check + ": " + f.Reason
}

// Report is the outcome of evaluating checks.
type Report struct {
	checked  int
	failures []Failure
}

// Passed reports whether every check held.
func (r Report) Passed() bool {
	return len(r.failures) == 0
}

// Checked returns the number of checks evaluated.
func (r Report) Checked() int {
	return r.checked
}

// Failures returns the failed checks in evaluation order.
func (r Report) Failures() []Failure {
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Err returns nil when every check held, or an error listing each failure.
func (r Report) Err() error {
	if r.Passed() {
		return nil
	}
	return errors.Newf("%d of %d checks failed: %s", len(r.failures), r.checked, r.joined("; "))
}

func (r Report) String() string {
	if r.Passed() {
		return fmt.Sprintf("%d checks passed", r.checked)
	}
	return fmt.Sprintf("%d of %d checks failed:\n  %s", len(r.failures), r.checked, r.joined("\n  "))
}

func (r Report) joined(sep string) string {
	parts := make([]string, len(r.failures))
	for i, f := range r.failures {
		parts[i] = f.String()
	}
	return strings.Join(parts, sep)
}

// Evaluator runs checks under a classification policy and rent parameters.
type Evaluator struct {
	Policy instruction.Policy
	Rent   accounts.Rent
}

// DefaultEvaluator uses the default policy and rent.
func DefaultEvaluator() Evaluator {
	return Evaluator{Policy: instruction.DefaultPolicy(), Rent: accounts.DefaultRent()}
}

// Evaluate checks result with the default evaluator.
func Evaluate(result *Result, checks ...Check) Report {
	return DefaultEvaluator().Evaluate(result, checks...)
}

// Evaluate runs every check in order. It never stops at the first failure
// and never modifies result, so evaluating twice gives the same report.
func (ev Evaluator) Evaluate(result *Result, checks ...Check) Report {
	report := Report{checked: len(checks)}
	for _, c := range checks {
		if reason, ok := ev.run(result, c); !ok {
			report.failures = append(report.failures, Failure{Check: c.String(), Reason: reason})
		}
	}
	return report
}

func (ev Evaluator) run(result *Result, c Check) (string, bool) {
	switch c.kind {
	case checkSuccess:
		if result.Err != nil {
			return fmt.Sprintf("got error %v", result.Err), false
		}
	case checkErr:
		return ev.runErr(result, c)
	case checkComputeUnits:
		if result.ComputeUnitsConsumed != c.units {
			return fmt.Sprintf("got %d", result.ComputeUnitsConsumed), false
		}
	case checkAccount:
		return ev.runAccount(result, c.account)
	default:
		return "unknown check", false
	}
	return "", true
}

func (ev Evaluator) runErr(result *Result, c Check) (string, bool) {
	if result.Err == nil {
		return "instruction succeeded", false
	}
	if !result.Err.Equal(c.err) {
		return fmt.Sprintf("got error %v", result.Err), false
	}
	if got := ev.Policy.Classify(result.Err.Kind); got != c.class {
		return fmt.Sprintf("%v is a %s error", result.Err, got), false
	}
	return "", true
}

func (ev Evaluator) runAccount(result *Result, c *AccountCheck) (string, bool) {
	acc := result.Account(c.key)
	if acc == nil {
		return "account not found in result", false
	}

	var reasons []string
	if c.data != nil && !bytes.Equal(acc.Data, c.data) {
		reasons = append(reasons, fmt.Sprintf("data %x, want %x", acc.Data, c.data))
	}
	if c.lamports != nil && acc.Lamports != *c.lamports {
		reasons = append(reasons, fmt.Sprintf("lamports %d, want %d", acc.Lamports, *c.lamports))
	}
	if c.owner != nil && acc.Owner != *c.owner {
		reasons = append(reasons, fmt.Sprintf("owner %s, want %s", acc.Owner, *c.owner))
	}
	if c.executable != nil && acc.Executable != *c.executable {
		reasons = append(reasons, fmt.Sprintf("executable %t, want %t", acc.Executable, *c.executable))
	}
	if c.space != nil && len(acc.Data) != *c.space {
		reasons = append(reasons, fmt.Sprintf("space %d, want %d", len(acc.Data), *c.space))
	}
	if c.closed && !acc.IsClosed() {
		reasons = append(reasons, "account is not closed")
	}
	if c.rentExempt && !ev.Rent.IsExempt(acc.Lamports, len(acc.Data)) {
		reasons = append(reasons, fmt.Sprintf("lamports %d below rent-exempt minimum %d",
			acc.Lamports, ev.Rent.MinimumBalance(len(acc.Data))))
	}
	if len(reasons) > 0 {
		return strings.Join(reasons, ", "), false
	}
	return "", true
}
