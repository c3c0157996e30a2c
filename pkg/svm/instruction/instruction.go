// Package instruction defines the instruction wire shape and the error
// taxonomy returned by program execution.
package instruction

import (
	"github.com/fortiblox/X1-Harness/internal/types"
)

// AccountMeta describes an account referenced by an instruction. The signer
// and writable flags are declared by the caller, never inferred.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewMeta returns a writable account reference.
func NewMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyMeta returns a read-only account reference.
func NewReadonlyMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner}
}

// Instruction is a request to run a program over an ordered account list.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// New builds an instruction.
func New(programID types.Pubkey, data []byte, metas ...AccountMeta) Instruction {
	return Instruction{ProgramID: programID, Accounts: metas, Data: data}
}

// Keys returns the referenced pubkeys in order.
func (ix Instruction) Keys() []types.Pubkey {
	keys := make([]types.Pubkey, len(ix.Accounts))
	for i, m := range ix.Accounts {
		keys[i] = m.Pubkey
	}
	return keys
}

// IndexOf returns the first position of pubkey among the instruction
// accounts, or -1.
func (ix Instruction) IndexOf(pubkey types.Pubkey) int {
	for i, m := range ix.Accounts {
		if m.Pubkey == pubkey {
			return i
		}
	}
	return -1
}

// Clone deep-copies the instruction.
func (ix Instruction) Clone() Instruction {
	metas := make([]AccountMeta, len(ix.Accounts))
	copy(metas, ix.Accounts)
	data := make([]byte, len(ix.Data))
	copy(data, ix.Data)
	return Instruction{ProgramID: ix.ProgramID, Accounts: metas, Data: data}
}
