package svm

import (
	"sync/atomic"
)

// Compute unit limits.
const (
	CUDefault = uint64(200_000)   // Default CU limit per top-level instruction
	CUMax     = uint64(1_400_000) // Hard ceiling for any limit
)

// Cost schedule. Every constant is charged through ComputeMeter.Consume.
const (
	// Program entry
	CUInstructionBase        = uint64(100) // Entering a program
	CUAccountBase            = uint64(10)  // Per instruction account on entry
	CUInstructionDataPerByte = uint64(1)   // Per instruction data byte on entry

	// Validation
	CUAccountCheck = uint64(5) // Signer, length, key, owner and privilege checks

	// Memory operations
	CUMemoryOpBase    = uint64(10) // Base cost for memory ops
	CUMemoryOpPerByte = uint64(1)  // Per byte for memory ops

	// Cross-program invocation
	CUInvokeBase     = uint64(1_000) // Base cost for CPI
	CUCPIPerAccount  = uint64(10)    // Per forwarded account
	CUCPIPerDataByte = uint64(1)     // Per forwarded data byte

	// Native program defaults
	CUSystemProgramDefault = uint64(150) // System program, charged instead of entry cost
)

// CPI constants.
const (
	CPIDepthMax = 4 // Max stack height of a nested call
)

// EntryCost returns the charge for entering a program with the given number
// of accounts and data bytes.
func EntryCost(numAccounts, dataLen int) uint64 {
	return CUInstructionBase +
		CUAccountBase*uint64(numAccounts) +
		CUInstructionDataPerByte*uint64(dataLen)
}

// MemoryOpCost returns the charge for writing n bytes.
func MemoryOpCost(n int) uint64 {
	return CUMemoryOpBase + CUMemoryOpPerByte*uint64(n)
}

// InvokeCost returns the charge for a cross-program invocation.
func InvokeCost(numAccounts, dataLen int) uint64 {
	return CUInvokeBase +
		CUCPIPerAccount*uint64(numAccounts) +
		CUCPIPerDataByte*uint64(dataLen)
}

// ComputeMeter tracks compute unit consumption. One meter serves a
// top-level instruction and every call nested under it.
type ComputeMeter struct {
	remaining uint64
	consumed  uint64
	limit     uint64
}

// NewComputeMeter creates a new compute meter with the specified limit.
// Limits above CUMax are clamped.
func NewComputeMeter(limit uint64) *ComputeMeter {
	if limit > CUMax {
		limit = CUMax
	}
	return &ComputeMeter{
		remaining: limit,
		limit:     limit,
	}
}

// Consume attempts to consume the specified compute units.
//
// When cost exceeds what remains the meter is drained: consumed becomes the
// limit, remaining becomes zero and ErrComputeExceeded is returned.
func (cm *ComputeMeter) Consume(cost uint64) error {
	for {
		remaining := atomic.LoadUint64(&cm.remaining)
		if remaining < cost {
			if atomic.CompareAndSwapUint64(&cm.remaining, remaining, 0) {
				atomic.AddUint64(&cm.consumed, remaining)
				return ErrComputeExceeded
			}
			continue
		}
		if atomic.CompareAndSwapUint64(&cm.remaining, remaining, remaining-cost) {
			atomic.AddUint64(&cm.consumed, cost)
			return nil
		}
	}
}

// Remaining returns the remaining compute units.
func (cm *ComputeMeter) Remaining() uint64 {
	return atomic.LoadUint64(&cm.remaining)
}

// Consumed returns the total consumed compute units.
func (cm *ComputeMeter) Consumed() uint64 {
	return atomic.LoadUint64(&cm.consumed)
}

// Limit returns the compute unit limit.
func (cm *ComputeMeter) Limit() uint64 {
	return cm.limit
}
