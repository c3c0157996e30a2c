// Package accounts implements account values and the working set an
// instruction executes against.
//
// Accounts are plain values. The harness hands the processor a list of
// (pubkey, account) pairs, the processor mutates private copies inside a
// Store, and the caller gets fresh copies back. Nothing here outlives one
// top-level instruction call.
//
// # Layout
//
// An account is the Solana tuple:
// - Lamports: balance
// - Data: program-defined bytes
// - Owner: the program allowed to change Data and debit Lamports
// - Executable: set for program accounts, which are immutable
// - RentEpoch: carried through unchanged
package accounts

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/fortiblox/X1-Harness/internal/types"
)

var (
	// ErrInvalidData is returned when serialized account bytes are malformed.
	ErrInvalidData = errors.New("invalid account data")
)

// MaxAccountDataSize is the largest data region an account may hold.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// Account represents a single account in the state.
type Account struct {
	// Lamports is the account balance in lamports.
	Lamports uint64

	// Data is the account data. Its length is the allocated size.
	Data []byte

	// Owner is the program that owns this account.
	// Only the owner program can modify the account data.
	Owner types.Pubkey

	// Executable indicates if this is a program account.
	// Executable accounts cannot have their data or lamports modified.
	Executable bool

	// RentEpoch is carried through execution untouched.
	RentEpoch uint64
}

// NewAccount returns an account holding lamports with space zeroed bytes,
// owned by owner.
func NewAccount(lamports uint64, space int, owner types.Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     make([]byte, space),
		Owner:    owner,
	}
}

// Default returns the empty, system-owned account that stands in for a key
// the caller never funded.
func Default() *Account {
	return &Account{Data: []byte{}, Owner: types.SystemProgramAddr}
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dataCopy := make([]byte, len(a.Data))
	copy(dataCopy, a.Data)
	return &Account{
		Lamports:   a.Lamports,
		Data:       dataCopy,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
}

// IsZero returns true if the account has no lamports and no data.
func (a *Account) IsZero() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// IsClosed reports the canonical closed state: zero lamports, empty data
// and owned by the System Program. There is no separate closed flag.
func (a *Account) IsClosed() bool {
	return a.IsZero() && a.Owner == types.SystemProgramAddr
}

// DataLen returns the length of account data.
func (a *Account) DataLen() int {
	return len(a.Data)
}

// Equal compares every field, treating nil and empty data as equal.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Lamports == other.Lamports &&
		bytes.Equal(a.Data, other.Data) &&
		a.Owner == other.Owner &&
		a.Executable == other.Executable &&
		a.RentEpoch == other.RentEpoch
}

// Binary layout, little endian:
//
//	lamports u64 | rent_epoch u64 | executable u8 | owner [32]byte | data_len u64 | data
const encodedHeaderSize = 8 + 8 + 1 + types.PubkeySize + 8

// EncodedLen returns the length of the binary form of a.
func (a *Account) EncodedLen() int {
	return encodedHeaderSize + len(a.Data)
}

// AppendBinary appends the binary form of a to buf.
func (a *Account) AppendBinary(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, a.Lamports)
	buf = binary.LittleEndian.AppendUint64(buf, a.RentEpoch)
	if a.Executable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, a.Owner[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(a.Data)))
	return append(buf, a.Data...)
}

// MarshalBinary implements encoding.BinaryMarshaler. Fixtures store
// accounts in this form.
func (a *Account) MarshalBinary() ([]byte, error) {
	return a.AppendBinary(make([]byte, 0, a.EncodedLen())), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. a is left
// untouched when b is malformed.
func (a *Account) UnmarshalBinary(b []byte) error {
	if len(b) < encodedHeaderSize {
		return errors.Wrapf(ErrInvalidData, "%d bytes, want at least %d", len(b), encodedHeaderSize)
	}

	var dec Account
	dec.Lamports = binary.LittleEndian.Uint64(b[0:])
	dec.RentEpoch = binary.LittleEndian.Uint64(b[8:])
	switch b[16] {
	case 0:
	case 1:
		dec.Executable = true
	default:
		return errors.Wrapf(ErrInvalidData, "executable flag %d", b[16])
	}
	copy(dec.Owner[:], b[17:17+types.PubkeySize])

	n := binary.LittleEndian.Uint64(b[encodedHeaderSize-8:])
	rest := b[encodedHeaderSize:]
	if n > MaxAccountDataSize || uint64(len(rest)) != n {
		return errors.Wrapf(ErrInvalidData, "data length %d with %d bytes following", n, len(rest))
	}
	dec.Data = append([]byte{}, rest...)

	*a = dec
	return nil
}

// KeyedAccount pairs an account with its identity.
type KeyedAccount struct {
	Pubkey  types.Pubkey
	Account *Account
}

// Keyed is shorthand for building a KeyedAccount.
func Keyed(pubkey types.Pubkey, account *Account) KeyedAccount {
	return KeyedAccount{Pubkey: pubkey, Account: account}
}

// Clone deep-copies the account half of the pair.
func (k KeyedAccount) Clone() KeyedAccount {
	return KeyedAccount{Pubkey: k.Pubkey, Account: k.Account.Clone()}
}

// CloneAll deep-copies a list of keyed accounts.
func CloneAll(list []KeyedAccount) []KeyedAccount {
	out := make([]KeyedAccount, len(list))
	for i, k := range list {
		out[i] = k.Clone()
	}
	return out
}
