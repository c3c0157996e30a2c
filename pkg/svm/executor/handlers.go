package executor

import (
	"encoding/binary"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/system"
)

// writeData copies payload to the start of account 0.
func (ctx *invokeContext) writeData(payload []byte) error {
	acc, err := ctx.borrow(0)
	if err != nil {
		return err
	}

	if err := ctx.Consume(svm.CUAccountCheck); err != nil {
		return err
	}
	if len(payload) > len(acc.Data()) {
		ctx.Log("data of %d bytes does not fit account of %d bytes", len(payload), len(acc.Data()))
		return instruction.ErrAccountDataTooSmall
	}

	if err := ctx.Consume(svm.MemoryOpCost(len(payload))); err != nil {
		return err
	}
	return acc.WriteAt(0, payload)
}

// transfer moves lamports from account 0 to account 1 through the System
// Program.
func (ctx *invokeContext) transfer(payload []byte) error {
	if len(payload) < 8 {
		return instruction.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(payload[:8])

	if len(ctx.ix.Accounts) < 2 {
		return instruction.ErrNotEnoughAccountKeys
	}
	payer := ctx.ix.Accounts[0].Pubkey
	recipient := ctx.ix.Accounts[1].Pubkey

	return ctx.Invoke(instruction.New(
		types.SystemProgramAddr,
		system.TransferData(lamports),
		instruction.NewMeta(payer, true),
		instruction.NewMeta(recipient, false),
	))
}

// closeAccount drains account 0 into the incinerator at account 1, empties
// its data and hands it back to the System Program.
func (ctx *invokeContext) closeAccount() error {
	target, err := ctx.borrow(0)
	if err != nil {
		return err
	}
	sink, err := ctx.borrow(1)
	if err != nil {
		return err
	}

	if err := ctx.Consume(svm.CUAccountCheck); err != nil {
		return err
	}
	if sink.Key() != types.IncineratorAddr {
		ctx.Log("close destination %s is not the incinerator", sink.Key())
		return instruction.ErrInvalidArgument
	}

	if err := sink.CheckedAddLamports(target.Lamports()); err != nil {
		return err
	}
	if err := target.SetLamports(0); err != nil {
		return err
	}

	if err := ctx.Consume(svm.MemoryOpCost(len(target.Data()))); err != nil {
		return err
	}
	if err := target.SetDataLength(0); err != nil {
		return err
	}

	if err := ctx.Consume(svm.CUAccountCheck); err != nil {
		return err
	}
	return target.SetOwner(types.SystemProgramAddr)
}

// invokeTarget forwards the remaining payload to the program named by its
// first 32 bytes. Every caller account except the target is passed on;
// account 0 is forwarded as signer and writable.
func (ctx *invokeContext) invokeTarget(payload []byte) error {
	if len(payload) < types.PubkeySize {
		return instruction.ErrInvalidInstructionData
	}
	var target types.Pubkey
	copy(target[:], payload[:types.PubkeySize])
	if len(ctx.ix.Accounts) == 0 {
		return instruction.ErrNotEnoughAccountKeys
	}

	metas := make([]instruction.AccountMeta, 0, len(ctx.ix.Accounts))
	for i, meta := range ctx.ix.Accounts {
		if meta.Pubkey == target {
			continue
		}
		if i == 0 {
			meta = instruction.NewMeta(meta.Pubkey, true)
		}
		metas = append(metas, meta)
	}

	return ctx.Invoke(instruction.New(target, payload[types.PubkeySize:], metas...))
}
