// Package system implements the native System Program.
//
// The System Program is responsible for:
// - Creating new accounts
// - Transferring lamports
// - Assigning account ownership
// - Allocating account space
// - The seed-derived variants of the above
//
// Account mutations go through program.Account, so the runtime's ownership
// rules apply to the System Program like any other caller.
package system

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/program"
)

// Name is the program name used in logs.
const Name = "system_program"

// Instruction discriminants.
const (
	InstructionCreateAccount = iota
	InstructionAssign
	InstructionTransfer
	InstructionCreateAccountWithSeed
	InstructionAdvanceNonceAccount
	InstructionWithdrawNonceAccount
	InstructionInitializeNonceAccount
	InstructionAuthorizeNonceAccount
	InstructionAllocate
	InstructionAllocateWithSeed
	InstructionAssignWithSeed
	InstructionTransferWithSeed
	InstructionUpgradeNonceAccount
)

// SystemError codes, reported as custom program errors.
const (
	ErrCodeAccountAlreadyInUse uint32 = iota
	ErrCodeResultWithNegativeLamports
	ErrCodeInvalidProgramID
	ErrCodeInvalidAccountDataLength
	ErrCodeMaxSeedLengthExceeded
	ErrCodeAddressWithSeedMismatch
)

// SystemError values.
var (
	ErrAccountAlreadyInUse        = instruction.Custom(ErrCodeAccountAlreadyInUse)
	ErrResultWithNegativeLamports = instruction.Custom(ErrCodeResultWithNegativeLamports)
	ErrInvalidProgramID           = instruction.Custom(ErrCodeInvalidProgramID)
	ErrInvalidAccountDataLength   = instruction.Custom(ErrCodeInvalidAccountDataLength)
	ErrMaxSeedLengthExceeded      = instruction.Custom(ErrCodeMaxSeedLengthExceeded)
	ErrAddressWithSeedMismatch    = instruction.Custom(ErrCodeAddressWithSeedMismatch)
)

// MaxSeedLength is the longest seed accepted by the seed variants.
const MaxSeedLength = 32

// Processor executes System Program instructions.
type Processor struct{}

// NewProcessor creates a new System Program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// ID implements program.Builtin.
func (p *Processor) ID() types.Pubkey {
	return types.SystemProgramAddr
}

// Name implements program.Builtin.
func (p *Processor) Name() string {
	return Name
}

// EntryCost implements program.Builtin.
func (p *Processor) EntryCost() uint64 {
	return svm.CUSystemProgramDefault
}

// Process executes a System Program instruction.
func (p *Processor) Process(ctx program.InvokeContext, data []byte) error {
	if len(data) < 4 {
		return instruction.ErrInvalidInstructionData
	}

	ix := binary.LittleEndian.Uint32(data[:4])

	switch ix {
	case InstructionCreateAccount:
		return p.processCreateAccount(ctx, data[4:])
	case InstructionAssign:
		return p.processAssign(ctx, data[4:])
	case InstructionTransfer:
		return p.processTransfer(ctx, data[4:])
	case InstructionAllocate:
		return p.processAllocate(ctx, data[4:])
	case InstructionCreateAccountWithSeed:
		return p.processCreateAccountWithSeed(ctx, data[4:])
	case InstructionAllocateWithSeed:
		return p.processAllocateWithSeed(ctx, data[4:])
	case InstructionAssignWithSeed:
		return p.processAssignWithSeed(ctx, data[4:])
	case InstructionTransferWithSeed:
		return p.processTransferWithSeed(ctx, data[4:])
	default:
		// Nonce accounts are not supported.
		return instruction.ErrInvalidInstructionData
	}
}

// processCreateAccount funds, allocates and assigns a new account.
// Accounts: [0] funder (signer, writable), [1] new account (signer, writable).
func (p *Processor) processCreateAccount(ctx program.InvokeContext, data []byte) error {
	// lamports (8) + space (8) + owner (32)
	if len(data) < 48 {
		return instruction.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	space := binary.LittleEndian.Uint64(data[8:16])
	var owner types.Pubkey
	copy(owner[:], data[16:48])

	funder, err := ctx.Account(0)
	if err != nil {
		return err
	}
	to, err := ctx.Account(1)
	if err != nil {
		return err
	}

	if to.Lamports() > 0 {
		ctx.Log("Create Account: account %s already in use", to.Key())
		return ErrAccountAlreadyInUse
	}
	if err := allocateAndAssign(ctx, to, to.IsSigner(), space, owner); err != nil {
		return err
	}
	return transfer(ctx, funder, to, lamports)
}

// processAssign changes the owner of an account.
// Accounts: [0] account (signer, writable).
func (p *Processor) processAssign(ctx program.InvokeContext, data []byte) error {
	if len(data) < 32 {
		return instruction.ErrInvalidInstructionData
	}
	var owner types.Pubkey
	copy(owner[:], data[0:32])

	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	return assign(ctx, account, account.IsSigner(), owner)
}

// processTransfer transfers lamports between accounts.
// Accounts: [0] from (signer, writable), [1] to (writable).
func (p *Processor) processTransfer(ctx program.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return instruction.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])

	from, err := ctx.Account(0)
	if err != nil {
		return err
	}
	to, err := ctx.Account(1)
	if err != nil {
		return err
	}

	if !from.IsSigner() {
		ctx.Log("Transfer: `from` account %s must sign", from.Key())
		return instruction.ErrMissingRequiredSignature
	}
	return transfer(ctx, from, to, lamports)
}

// processAllocate allocates space in an account.
// Accounts: [0] account (signer, writable).
func (p *Processor) processAllocate(ctx program.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return instruction.ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(data[0:8])

	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	return allocate(ctx, account, account.IsSigner(), space)
}

// seeded is the common prefix of the seed variants: base (32) + seed_len
// (8) + seed.
type seeded struct {
	base types.Pubkey
	seed []byte
}

func parseSeeded(data []byte) (seeded, []byte, error) {
	var s seeded
	if len(data) < 40 {
		return s, nil, instruction.ErrInvalidInstructionData
	}
	copy(s.base[:], data[0:32])
	seedLen := binary.LittleEndian.Uint64(data[32:40])
	if seedLen > uint64(len(data)-40) {
		return s, nil, instruction.ErrInvalidInstructionData
	}
	if seedLen > MaxSeedLength {
		return s, nil, ErrMaxSeedLengthExceeded
	}
	s.seed = data[40 : 40+seedLen]
	return s, data[40+seedLen:], nil
}

// processCreateAccountWithSeed creates an account at a seed-derived address.
// Accounts: [0] funder (signer), [1] new account, [2] base (signer,
// optional when the funder is the base).
func (p *Processor) processCreateAccountWithSeed(ctx program.InvokeContext, data []byte) error {
	s, rest, err := parseSeeded(data)
	if err != nil {
		return err
	}
	// lamports (8) + space (8) + owner (32)
	if len(rest) < 48 {
		return instruction.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(rest[0:8])
	space := binary.LittleEndian.Uint64(rest[8:16])
	var owner types.Pubkey
	copy(owner[:], rest[16:48])

	funder, err := ctx.Account(0)
	if err != nil {
		return err
	}
	to, err := ctx.Account(1)
	if err != nil {
		return err
	}
	if err := checkSeedAddress(ctx, to.Key(), s, owner); err != nil {
		return err
	}
	if to.Lamports() > 0 {
		ctx.Log("Create Account: account %s already in use", to.Key())
		return ErrAccountAlreadyInUse
	}
	if err := allocateAndAssign(ctx, to, baseSigned(ctx, s.base), space, owner); err != nil {
		return err
	}
	return transfer(ctx, funder, to, lamports)
}

// processAllocateWithSeed allocates and assigns a seed-derived account.
// Accounts: [0] account, [1] base (signer).
func (p *Processor) processAllocateWithSeed(ctx program.InvokeContext, data []byte) error {
	s, rest, err := parseSeeded(data)
	if err != nil {
		return err
	}
	// space (8) + owner (32)
	if len(rest) < 40 {
		return instruction.ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(rest[0:8])
	var owner types.Pubkey
	copy(owner[:], rest[8:40])

	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	if err := checkSeedAddress(ctx, account.Key(), s, owner); err != nil {
		return err
	}
	return allocateAndAssign(ctx, account, baseSigned(ctx, s.base), space, owner)
}

// processAssignWithSeed assigns a seed-derived account.
// Accounts: [0] account, [1] base (signer).
func (p *Processor) processAssignWithSeed(ctx program.InvokeContext, data []byte) error {
	s, rest, err := parseSeeded(data)
	if err != nil {
		return err
	}
	if len(rest) < 32 {
		return instruction.ErrInvalidInstructionData
	}
	var owner types.Pubkey
	copy(owner[:], rest[0:32])

	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	if err := checkSeedAddress(ctx, account.Key(), s, owner); err != nil {
		return err
	}
	return assign(ctx, account, baseSigned(ctx, s.base), owner)
}

// processTransferWithSeed transfers from a seed-derived account.
// Data: lamports (8) + seed_len (8) + seed + from_owner (32).
// Accounts: [0] from, [1] base (signer), [2] to.
func (p *Processor) processTransferWithSeed(ctx program.InvokeContext, data []byte) error {
	if len(data) < 16 {
		return instruction.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	seedLen := binary.LittleEndian.Uint64(data[8:16])
	if seedLen > uint64(len(data)-16) {
		return instruction.ErrInvalidInstructionData
	}
	if seedLen > MaxSeedLength {
		return ErrMaxSeedLengthExceeded
	}
	seed := data[16 : 16+seedLen]
	rest := data[16+seedLen:]
	if len(rest) < 32 {
		return instruction.ErrInvalidInstructionData
	}
	var fromOwner types.Pubkey
	copy(fromOwner[:], rest[0:32])

	from, err := ctx.Account(0)
	if err != nil {
		return err
	}
	base, err := ctx.Account(1)
	if err != nil {
		return err
	}
	to, err := ctx.Account(2)
	if err != nil {
		return err
	}

	if !base.IsSigner() {
		ctx.Log("Transfer: 'from' account %s must sign", base.Key())
		return instruction.ErrMissingRequiredSignature
	}
	if err := checkSeedAddress(ctx, from.Key(), seeded{base: base.Key(), seed: seed}, fromOwner); err != nil {
		return err
	}
	return transfer(ctx, from, to, lamports)
}

func allocate(ctx program.InvokeContext, account program.Account, signed bool, space uint64) error {
	if !signed {
		ctx.Log("Allocate: 'to' account %s must sign", account.Key())
		return instruction.ErrMissingRequiredSignature
	}
	if len(account.Data()) > 0 || account.Owner() != types.SystemProgramAddr {
		ctx.Log("Allocate: account %s already in use", account.Key())
		return ErrAccountAlreadyInUse
	}
	if space > accounts.MaxAccountDataSize {
		ctx.Log("Allocate: requested %d, max allowed %d", space, accounts.MaxAccountDataSize)
		return ErrInvalidAccountDataLength
	}
	return account.SetDataLength(int(space))
}

func assign(ctx program.InvokeContext, account program.Account, signed bool, owner types.Pubkey) error {
	if account.Owner() == owner {
		return nil
	}
	if !signed {
		ctx.Log("Assign: account %s must sign", account.Key())
		return instruction.ErrMissingRequiredSignature
	}
	return account.SetOwner(owner)
}

func allocateAndAssign(ctx program.InvokeContext, account program.Account, signed bool, space uint64, owner types.Pubkey) error {
	if err := allocate(ctx, account, signed, space); err != nil {
		return err
	}
	return assign(ctx, account, signed, owner)
}

func transfer(ctx program.InvokeContext, from, to program.Account, lamports uint64) error {
	if len(from.Data()) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return instruction.ErrInvalidArgument
	}
	if lamports > from.Lamports() {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return ErrResultWithNegativeLamports
	}
	if err := from.CheckedSubLamports(lamports); err != nil {
		return err
	}
	return to.CheckedAddLamports(lamports)
}

// baseSigned reports whether base appears among the instruction accounts
// as a signer.
func baseSigned(ctx program.InvokeContext, base types.Pubkey) bool {
	for i := 0; i < ctx.NumAccounts(); i++ {
		acc, err := ctx.Account(i)
		if err != nil {
			return false
		}
		if acc.Key() == base && acc.IsSigner() {
			return true
		}
	}
	return false
}

func checkSeedAddress(ctx program.InvokeContext, address types.Pubkey, s seeded, owner types.Pubkey) error {
	expected := CreateWithSeed(s.base, s.seed, owner)
	if expected != address {
		ctx.Log("Create: address %s does not match derived address %s", address, expected)
		return ErrAddressWithSeedMismatch
	}
	return nil
}

// CreateWithSeed derives an address from base + seed + owner.
func CreateWithSeed(base types.Pubkey, seed []byte, owner types.Pubkey) types.Pubkey {
	// SHA256(base + seed + owner)
	h := sha256.New()
	h.Write(base[:])
	h.Write(seed)
	h.Write(owner[:])

	var result types.Pubkey
	copy(result[:], h.Sum(nil))
	return result
}

// TransferData encodes a Transfer instruction.
func TransferData(lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return data
}

// CreateAccountData encodes a CreateAccount instruction.
func CreateAccountData(lamports, space uint64, owner types.Pubkey) []byte {
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data[0:4], InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	binary.LittleEndian.PutUint64(data[12:20], space)
	copy(data[20:52], owner[:])
	return data
}

// AssignData encodes an Assign instruction.
func AssignData(owner types.Pubkey) []byte {
	data := make([]byte, 36)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAssign)
	copy(data[4:36], owner[:])
	return data
}

// AllocateData encodes an Allocate instruction.
func AllocateData(space uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:12], space)
	return data
}

// CreateAccountWithSeedData encodes a CreateAccountWithSeed instruction.
func CreateAccountWithSeedData(base types.Pubkey, seed []byte, lamports, space uint64, owner types.Pubkey) []byte {
	data := make([]byte, 0, 4+40+len(seed)+48)
	data = binary.LittleEndian.AppendUint32(data, InstructionCreateAccountWithSeed)
	data = append(data, base[:]...)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(seed)))
	data = append(data, seed...)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	return append(data, owner[:]...)
}
