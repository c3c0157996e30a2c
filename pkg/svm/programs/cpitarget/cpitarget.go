// Package cpitarget is the reference callee for cross-program invocation.
// Its whole instruction data is a write-data payload for account 0.
package cpitarget

import (
	"github.com/fortiblox/X1-Harness/pkg/svm/program"
)

// ArtifactName is the artifact that resolves to this program.
const ArtifactName = "test_program_cpi_target"

// Program treats every instruction as write-data.
type Program struct{}

// New returns the CPI target program.
func New() *Program {
	return &Program{}
}

// Name implements program.Program.
func (p *Program) Name() string {
	return ArtifactName
}

// Decode implements program.Program. Empty data is rejected.
func (p *Program) Decode(data []byte) (program.Opcode, []byte, bool) {
	if len(data) == 0 {
		return 0, nil, false
	}
	return program.OpWriteData, data, true
}

// Signers implements program.Program.
func (p *Program) Signers(op program.Opcode) []int {
	return []int{0}
}
