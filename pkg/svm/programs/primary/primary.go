// Package primary is the reference test program. Byte 0 of the instruction
// data selects the opcode; the rest is its payload.
//
//	1  write data       payload is written at offset 0 of account 0
//	2  transfer         8-byte little-endian amount, account 0 pays account 1
//	3  close account    account 0 is closed into account 1 (the incinerator)
//	4  invoke           32-byte target program id followed by inner data
package primary

import (
	"encoding/binary"

	"github.com/fortiblox/X1-Harness/pkg/svm/program"
)

// ArtifactName is the artifact that resolves to this program.
const ArtifactName = "test_program_primary"

// Program decodes the selector byte.
type Program struct{}

// New returns the primary program.
func New() *Program {
	return &Program{}
}

// Name implements program.Program.
func (p *Program) Name() string {
	return ArtifactName
}

// Decode implements program.Program.
func (p *Program) Decode(data []byte) (program.Opcode, []byte, bool) {
	if len(data) == 0 {
		return 0, nil, false
	}
	op := program.Opcode(data[0])
	if !op.Valid() {
		return 0, nil, false
	}
	return op, data[1:], true
}

// Signers implements program.Program. Invoke delegates signer checks to
// the callee.
func (p *Program) Signers(op program.Opcode) []int {
	switch op {
	case program.OpWriteData, program.OpTransfer, program.OpCloseAccount:
		return []int{0}
	default:
		return nil
	}
}

// WriteData encodes a write-data instruction.
func WriteData(payload []byte) []byte {
	return append([]byte{byte(program.OpWriteData)}, payload...)
}

// Transfer encodes a transfer instruction.
func Transfer(lamports uint64) []byte {
	data := make([]byte, 9)
	data[0] = byte(program.OpTransfer)
	binary.LittleEndian.PutUint64(data[1:], lamports)
	return data
}

// CloseAccount encodes a close-account instruction.
func CloseAccount() []byte {
	return []byte{byte(program.OpCloseAccount)}
}

// Invoke encodes a cross-program invocation of target with inner data.
func Invoke(target [32]byte, inner []byte) []byte {
	data := make([]byte, 0, 1+32+len(inner))
	data = append(data, byte(program.OpInvoke))
	data = append(data, target[:]...)
	return append(data, inner...)
}
