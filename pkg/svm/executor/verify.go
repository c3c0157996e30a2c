package executor

import (
	"math/bits"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
)

// verify runs the post-execution checks for a successful frame: one
// account check per writable reference, lamport conservation across the
// frame's accounts and, for the top-level frame, the rent state rule.
func (ctx *invokeContext) verify() error {
	for _, meta := range ctx.ix.Accounts {
		if !meta.IsWritable {
			continue
		}
		if err := ctx.Consume(svm.CUAccountCheck); err != nil {
			return err
		}
	}

	var preHi, preLo, postHi, postLo, carry uint64
	for _, key := range ctx.preKeys {
		preLo, carry = bits.Add64(preLo, ctx.pre[key].Lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, ctx.current(key).Lamports, 0)
		postHi += carry
	}
	if preHi != postHi || preLo != postLo {
		ctx.tx.log("instruction changed the sum of account balances")
		return instruction.ErrUnbalancedInstruction
	}

	if ctx.height == 1 {
		return ctx.verifyRent()
	}
	return nil
}

// verifyRent rejects writable accounts left in a rent state they could not
// have reached legitimately. The incinerator is exempt.
func (ctx *invokeContext) verifyRent() error {
	rent := ctx.exec.rent
	for _, key := range ctx.preKeys {
		if !ctx.isWritable(key) || key == types.IncineratorAddr {
			continue
		}
		pre := rent.StateOf(ctx.pre[key])
		post := rent.StateOf(ctx.current(key))
		if !accounts.TransitionAllowed(pre, post) {
			ctx.tx.log("Transaction leaves an account with a lower balance than rent-exempt minimum: %s", key)
			return instruction.ErrInsufficientFundsForRent
		}
	}
	return nil
}
