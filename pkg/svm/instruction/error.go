package instruction

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind enumerates instruction failures.
type Kind uint8

// Error kinds.
const (
	KindCustom Kind = iota
	KindInvalidArgument
	KindInvalidInstructionData
	KindInvalidAccountData
	KindAccountDataTooSmall
	KindInsufficientFunds
	KindIncorrectProgramID
	KindMissingRequiredSignature
	KindNotEnoughAccountKeys
	KindUnsupportedProgram
	KindArithmeticOverflow
	KindPrivilegeEscalation
	KindComputeBudgetExceeded
	KindCallDepth
	KindReadonlyDataModified
	KindReadonlyLamportChange
	KindExternalAccountDataModified
	KindExternalAccountLamportSpend
	KindModifiedProgramID
	KindExecutableDataModified
	KindExecutableLamportChange
	KindUnbalancedInstruction
	KindInsufficientFundsForRent

	numKinds
)

var kindNames = [numKinds]string{
	KindCustom:                      "Custom",
	KindInvalidArgument:             "InvalidArgument",
	KindInvalidInstructionData:      "InvalidInstructionData",
	KindInvalidAccountData:          "InvalidAccountData",
	KindAccountDataTooSmall:         "AccountDataTooSmall",
	KindInsufficientFunds:           "InsufficientFunds",
	KindIncorrectProgramID:          "IncorrectProgramId",
	KindMissingRequiredSignature:    "MissingRequiredSignature",
	KindNotEnoughAccountKeys:        "NotEnoughAccountKeys",
	KindUnsupportedProgram:          "UnsupportedProgramId",
	KindArithmeticOverflow:          "ArithmeticOverflow",
	KindPrivilegeEscalation:         "PrivilegeEscalation",
	KindComputeBudgetExceeded:       "ComputationalBudgetExceeded",
	KindCallDepth:                   "CallDepth",
	KindReadonlyDataModified:        "ReadonlyDataModified",
	KindReadonlyLamportChange:       "ReadonlyLamportChange",
	KindExternalAccountDataModified: "ExternalAccountDataModified",
	KindExternalAccountLamportSpend: "ExternalAccountLamportSpend",
	KindModifiedProgramID:           "ModifiedProgramId",
	KindExecutableDataModified:      "ExecutableDataModified",
	KindExecutableLamportChange:     "ExecutableLamportChange",
	KindUnbalancedInstruction:       "UnbalancedInstruction",
	KindInsufficientFundsForRent:    "InsufficientFundsForRent",
}

// String returns the kind's name.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ErrUnknownKind is returned by ParseKind for unrecognised names.
var ErrUnknownKind = errors.New("unknown error kind")

// ParseKind resolves a kind by name, ignoring case.
func ParseKind(name string) (Kind, error) {
	for k := Kind(0); k < numKinds; k++ {
		if strings.EqualFold(kindNames[k], name) {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", name)
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for k := range out {
		out[k] = Kind(k)
	}
	return out
}

// Error is the failure value produced by program execution. Code is only
// meaningful for KindCustom.
type Error struct {
	Kind Kind
	Code uint32
}

// NewError returns an error of the given kind.
func NewError(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Custom returns a program-defined error code.
func Custom(code uint32) *Error {
	return &Error{Kind: KindCustom, Code: code}
}

func (e *Error) Error() string {
	if e.Kind == KindCustom {
		return fmt.Sprintf("custom program error: %#x", e.Code)
	}
	return e.Kind.String()
}

// Is matches another *Error with the same kind and code, so sentinel values
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Equal reports whether e and other describe the same failure. Two nil
// errors are equal.
func (e *Error) Equal(other *Error) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Kind == other.Kind && e.Code == other.Code
}

// AsError extracts an *Error from err. Unrecognised errors are reported
// as false.
func AsError(err error) (*Error, bool) {
	var ixErr *Error
	if errors.As(err, &ixErr) {
		return ixErr, true
	}
	return nil, false
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument             = NewError(KindInvalidArgument)
	ErrInvalidInstructionData      = NewError(KindInvalidInstructionData)
	ErrInvalidAccountData          = NewError(KindInvalidAccountData)
	ErrAccountDataTooSmall         = NewError(KindAccountDataTooSmall)
	ErrInsufficientFunds           = NewError(KindInsufficientFunds)
	ErrIncorrectProgramID          = NewError(KindIncorrectProgramID)
	ErrMissingRequiredSignature    = NewError(KindMissingRequiredSignature)
	ErrNotEnoughAccountKeys        = NewError(KindNotEnoughAccountKeys)
	ErrUnsupportedProgram          = NewError(KindUnsupportedProgram)
	ErrArithmeticOverflow          = NewError(KindArithmeticOverflow)
	ErrPrivilegeEscalation         = NewError(KindPrivilegeEscalation)
	ErrComputeBudgetExceeded       = NewError(KindComputeBudgetExceeded)
	ErrCallDepth                   = NewError(KindCallDepth)
	ErrReadonlyDataModified        = NewError(KindReadonlyDataModified)
	ErrReadonlyLamportChange       = NewError(KindReadonlyLamportChange)
	ErrExternalAccountDataModified = NewError(KindExternalAccountDataModified)
	ErrExternalAccountLamportSpend = NewError(KindExternalAccountLamportSpend)
	ErrModifiedProgramID           = NewError(KindModifiedProgramID)
	ErrExecutableDataModified      = NewError(KindExecutableDataModified)
	ErrExecutableLamportChange     = NewError(KindExecutableLamportChange)
	ErrUnbalancedInstruction       = NewError(KindUnbalancedInstruction)
	ErrInsufficientFundsForRent    = NewError(KindInsufficientFundsForRent)
)

// Class separates failures a program reports about itself from failures
// the runtime raises at the instruction boundary.
type Class uint8

const (
	// ClassProgram covers errors a program returns from its own logic.
	ClassProgram Class = iota
	// ClassInstruction covers runtime enforcement failures.
	ClassInstruction
)

func (c Class) String() string {
	switch c {
	case ClassProgram:
		return "program"
	case ClassInstruction:
		return "instruction"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

// Policy maps error kinds to classes. Kinds not in the instruction set are
// program class.
type Policy struct {
	instruction map[Kind]bool
}

// DefaultPolicy classifies runtime enforcement kinds as instruction class.
func DefaultPolicy() Policy {
	return NewPolicy(
		KindPrivilegeEscalation,
		KindComputeBudgetExceeded,
		KindCallDepth,
		KindReadonlyDataModified,
		KindReadonlyLamportChange,
		KindExternalAccountDataModified,
		KindExternalAccountLamportSpend,
		KindModifiedProgramID,
		KindExecutableDataModified,
		KindExecutableLamportChange,
		KindUnbalancedInstruction,
		KindInsufficientFundsForRent,
	)
}

// NewPolicy returns a policy with exactly the given kinds in the
// instruction class.
func NewPolicy(instructionKinds ...Kind) Policy {
	p := Policy{instruction: make(map[Kind]bool, len(instructionKinds))}
	for _, k := range instructionKinds {
		p.instruction[k] = true
	}
	return p
}

// PolicyFromNames builds a policy from kind names, as found in config.
func PolicyFromNames(names []string) (Policy, error) {
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return Policy{}, err
		}
		kinds = append(kinds, k)
	}
	return NewPolicy(kinds...), nil
}

// Classify returns the class of kind.
func (p Policy) Classify(kind Kind) Class {
	if p.instruction[kind] {
		return ClassInstruction
	}
	return ClassProgram
}

// InstructionKinds lists the instruction-class kinds in declaration order.
func (p Policy) InstructionKinds() []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if p.instruction[k] {
			out = append(out, k)
		}
	}
	return out
}
