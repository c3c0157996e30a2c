package executor

import (
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
)

// Invoke runs inner as a cross-program invocation from this frame.
//
// The callee may only use privileges the caller holds: every forwarded
// account must be one of the caller's accounts, and may be signer or
// writable only if it is so in the caller. Failures propagate unchanged.
func (ctx *invokeContext) Invoke(inner instruction.Instruction) error {
	if ctx.height+1 > svm.CPIDepthMax {
		ctx.Log("invocation depth %d exceeds %d", ctx.height+1, svm.CPIDepthMax)
		return instruction.ErrCallDepth
	}

	if err := ctx.Consume(svm.InvokeCost(len(inner.Accounts), len(inner.Data))); err != nil {
		return err
	}

	callerIndex := ctx.ix.IndexOf(inner.ProgramID)
	if callerIndex < 0 {
		ctx.Log("unknown program %s", inner.ProgramID)
		return instruction.ErrNotEnoughAccountKeys
	}
	if !ctx.exec.isLoadable(inner.ProgramID, ctx.entries[callerIndex].Account) {
		ctx.tx.log("Program is not cached")
		return instruction.ErrInvalidAccountData
	}

	for _, meta := range inner.Accounts {
		if err := ctx.Consume(svm.CUAccountCheck); err != nil {
			return err
		}
		if ctx.ix.IndexOf(meta.Pubkey) < 0 {
			ctx.Log("instruction references an unknown account %s", meta.Pubkey)
			return instruction.ErrNotEnoughAccountKeys
		}
		if meta.IsSigner && !ctx.isSigner(meta.Pubkey) {
			ctx.tx.log("%s's signer privilege escalated", meta.Pubkey)
			return instruction.ErrPrivilegeEscalation
		}
		if meta.IsWritable && !ctx.isWritable(meta.Pubkey) {
			ctx.tx.log("%s's writable privilege escalated", meta.Pubkey)
			return instruction.ErrPrivilegeEscalation
		}
	}

	return ctx.exec.invoke(ctx.tx, inner, ctx.store, ctx.height+1)
}
