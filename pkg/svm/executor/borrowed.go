package executor

import (
	"math/bits"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/program"
)

// borrowedAccount is the checked view of one instruction account. Reads go
// straight to the frame's store entry; every write is validated against
// the running program before it lands.
type borrowedAccount struct {
	ctx   *invokeContext
	index int
	entry *accounts.Entry
}

var _ program.Account = (*borrowedAccount)(nil)

func (b *borrowedAccount) Key() types.Pubkey   { return b.entry.Pubkey }
func (b *borrowedAccount) Lamports() uint64    { return b.entry.Account.Lamports }
func (b *borrowedAccount) Data() []byte        { return b.entry.Account.Data }
func (b *borrowedAccount) Owner() types.Pubkey { return b.entry.Account.Owner }
func (b *borrowedAccount) Executable() bool    { return b.entry.Account.Executable }
func (b *borrowedAccount) IsSigner() bool      { return b.ctx.ix.Accounts[b.index].IsSigner }
func (b *borrowedAccount) IsWritable() bool    { return b.ctx.isWritable(b.entry.Pubkey) }

func (b *borrowedAccount) isOwnedByCaller() bool {
	return b.Owner() == b.ctx.programID
}

// SetLamports implements program.Account.
func (b *borrowedAccount) SetLamports(lamports uint64) error {
	// A program may only debit accounts it owns.
	if !b.isOwnedByCaller() && lamports < b.Lamports() {
		return instruction.ErrExternalAccountLamportSpend
	}
	if !b.IsWritable() {
		return instruction.ErrReadonlyLamportChange
	}
	if b.Executable() {
		return instruction.ErrExecutableLamportChange
	}
	b.entry.Account.Lamports = lamports
	return nil
}

// CheckedAddLamports implements program.Account.
func (b *borrowedAccount) CheckedAddLamports(lamports uint64) error {
	sum, carry := bits.Add64(b.Lamports(), lamports, 0)
	if carry != 0 {
		return instruction.ErrArithmeticOverflow
	}
	return b.SetLamports(sum)
}

// CheckedSubLamports implements program.Account.
func (b *borrowedAccount) CheckedSubLamports(lamports uint64) error {
	if lamports > b.Lamports() {
		return instruction.ErrArithmeticOverflow
	}
	return b.SetLamports(b.Lamports() - lamports)
}

// canChangeData mirrors the runtime rules for touching account data.
func (b *borrowedAccount) canChangeData() error {
	if b.Executable() {
		return instruction.ErrExecutableDataModified
	}
	if !b.IsWritable() {
		return instruction.ErrReadonlyDataModified
	}
	if !b.isOwnedByCaller() {
		return instruction.ErrExternalAccountDataModified
	}
	return nil
}

// SetData implements program.Account. The data region takes the length
// of data.
func (b *borrowedAccount) SetData(data []byte) error {
	if err := b.canChangeData(); err != nil {
		return err
	}
	if len(data) > accounts.MaxAccountDataSize {
		return instruction.ErrInvalidAccountData
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	b.entry.Account.Data = buf
	return nil
}

// SetDataLength implements program.Account. Growth is zero-filled.
func (b *borrowedAccount) SetDataLength(n int) error {
	if n < 0 || n > accounts.MaxAccountDataSize {
		return instruction.ErrInvalidAccountData
	}
	if n == len(b.Data()) {
		return nil
	}
	if err := b.canChangeData(); err != nil {
		return err
	}
	buf := make([]byte, n)
	copy(buf, b.Data())
	b.entry.Account.Data = buf
	return nil
}

// WriteAt overwrites data starting at offset without resizing.
func (b *borrowedAccount) WriteAt(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > len(b.Data()) {
		return instruction.ErrAccountDataTooSmall
	}
	if err := b.canChangeData(); err != nil {
		return err
	}
	copy(b.entry.Account.Data[offset:], p)
	return nil
}

// SetOwner implements program.Account. Only the current owner may hand an
// account over, and only once its data is zeroed.
func (b *borrowedAccount) SetOwner(owner types.Pubkey) error {
	if !b.isOwnedByCaller() {
		return instruction.ErrModifiedProgramID
	}
	if !b.IsWritable() {
		return instruction.ErrModifiedProgramID
	}
	if b.Executable() {
		return instruction.ErrModifiedProgramID
	}
	if !isZeroed(b.Data()) {
		return instruction.ErrModifiedProgramID
	}
	b.entry.Account.Owner = owner
	return nil
}

func isZeroed(data []byte) bool {
	for _, c := range data {
		if c != 0 {
			return false
		}
	}
	return true
}
