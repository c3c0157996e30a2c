// Package program defines what the processor needs from a program: a
// decoder from instruction bytes to an opcode, the opcode's signer table,
// and for native programs a Process entry point.
package program

import (
	"fmt"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
)

// Opcode is the closed set of operations a registered program can request.
type Opcode uint8

// Opcodes. Values match the selector byte of the reference program.
const (
	OpWriteData    Opcode = 1
	OpTransfer     Opcode = 2
	OpCloseAccount Opcode = 3
	OpInvoke       Opcode = 4
)

func (op Opcode) String() string {
	switch op {
	case OpWriteData:
		return "WriteData"
	case OpTransfer:
		return "Transfer"
	case OpCloseAccount:
		return "CloseAccount"
	case OpInvoke:
		return "Invoke"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// Valid reports whether op is one of the defined opcodes.
func (op Opcode) Valid() bool {
	return op >= OpWriteData && op <= OpInvoke
}

// Program is a registered (non-native) program.
type Program interface {
	// Name identifies the program in logs.
	Name() string

	// Decode splits instruction data into an opcode and its payload.
	// ok is false for data the program does not understand.
	Decode(data []byte) (op Opcode, payload []byte, ok bool)

	// Signers lists the instruction account indices that must sign op.
	Signers(op Opcode) []int
}

// Account is the checked view of an instruction account handed to native
// programs. Every mutator enforces the runtime's ownership and writability
// rules and returns an *instruction.Error on violation.
type Account interface {
	Key() types.Pubkey
	Lamports() uint64
	Data() []byte
	Owner() types.Pubkey
	Executable() bool
	IsSigner() bool
	IsWritable() bool

	SetLamports(lamports uint64) error
	CheckedAddLamports(lamports uint64) error
	CheckedSubLamports(lamports uint64) error
	SetData(data []byte) error
	SetDataLength(n int) error
	SetOwner(owner types.Pubkey) error
}

// InvokeContext is what a native program sees while it runs.
type InvokeContext interface {
	// ProgramID returns the running program's key.
	ProgramID() types.Pubkey

	// NumAccounts returns the number of instruction accounts.
	NumAccounts() int

	// Account returns the checked instruction account at index, or
	// NotEnoughAccountKeys.
	Account(index int) (Account, error)

	// Rent returns the rent parameters in effect.
	Rent() accounts.Rent

	// Consume charges compute units.
	Consume(units uint64) error

	// Log records a program log line.
	Log(format string, args ...interface{})
}

// Builtin is a native program executed directly by the runtime.
type Builtin interface {
	ID() types.Pubkey
	Name() string

	// EntryCost is the flat compute charge for entering the program.
	EntryCost() uint64

	Process(ctx InvokeContext, data []byte) error
}
