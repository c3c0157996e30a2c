// Package fixture captures processed instructions so they can be stored
// and replayed later.
//
// A Fixture holds everything needed to run an instruction again: the
// registered programs, the instruction, the input accounts and the
// effects observed when it was captured. Replay re-runs it and checks the
// new result against those effects.
package fixture

import (
	"bytes"
	"encoding/gob"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/harness"
	"github.com/fortiblox/X1-Harness/pkg/log"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
)

var logger = log.NewLogger("fixture")

var (
	// ErrNotFound is returned when no fixture has the requested name.
	ErrNotFound = errors.New("fixture not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("fixture store closed")

	// ErrInvalidFixture is returned for fixtures that cannot be stored.
	ErrInvalidFixture = errors.New("invalid fixture")

	// ErrCorrupt is returned when stored bytes are not a fixture.
	ErrCorrupt = errors.New("corrupt fixture")

	// ErrChecksumMismatch is returned when the stored checksum does not
	// match the payload.
	ErrChecksumMismatch = errors.New("fixture checksum mismatch")
)

// Fixture is one captured instruction.
type Fixture struct {
	Name             string
	ProgramID        types.Pubkey
	Programs         []harness.ProgramRef
	ComputeUnitLimit uint64
	Instruction      instruction.Instruction
	Accounts         []accounts.KeyedAccount
	Effects          Effects
}

// Effects is what processing the instruction produced.
type Effects struct {
	Err               *instruction.Error
	ComputeUnits      uint64
	ResultingAccounts []accounts.KeyedAccount
}

// Validate checks that f can be stored and replayed.
func (f *Fixture) Validate() error {
	if f.Name == "" {
		return errors.Wrap(ErrInvalidFixture, "name is required")
	}
	for _, k := range f.Accounts {
		if k.Account == nil {
			return errors.Wrapf(ErrInvalidFixture, "account %s has no state", k.Pubkey)
		}
	}
	for _, k := range f.Effects.ResultingAccounts {
		if k.Account == nil {
			return errors.Wrapf(ErrInvalidFixture, "resulting account %s has no state", k.Pubkey)
		}
	}
	return nil
}

// EffectsFromResult copies the observable effects of res.
func EffectsFromResult(res *harness.Result) Effects {
	e := Effects{
		ComputeUnits:      res.ComputeUnitsConsumed,
		ResultingAccounts: accounts.CloneAll(res.ResultingAccounts),
	}
	if res.Err != nil {
		e.Err = &instruction.Error{Kind: res.Err.Kind, Code: res.Err.Code}
	}
	return e
}

// Checks converts the effects into harness checks. Errors are checked in
// the class policy assigns them.
func (e Effects) Checks(policy instruction.Policy) []harness.Check {
	checks := make([]harness.Check, 0, 2+len(e.ResultingAccounts))
	switch {
	case e.Err == nil:
		checks = append(checks, harness.Success())
	case policy.Classify(e.Err.Kind) == instruction.ClassInstruction:
		checks = append(checks, harness.InstructionErr(e.Err))
	default:
		checks = append(checks, harness.Err(e.Err))
	}
	checks = append(checks, harness.ComputeUnits(e.ComputeUnits))

	seen := make(map[types.Pubkey]bool, len(e.ResultingAccounts))
	for i := len(e.ResultingAccounts) - 1; i >= 0; i-- {
		k := e.ResultingAccounts[i]
		if seen[k.Pubkey] {
			continue
		}
		seen[k.Pubkey] = true
		checks = append(checks, harness.Account(k.Pubkey).
			Data(k.Account.Data).
			Lamports(k.Account.Lamports).
			Owner(k.Account.Owner).
			Executable(k.Account.Executable).
			Build())
	}
	return checks
}

// ChecksFromResult derives checks that a later run must satisfy to match res.
func ChecksFromResult(res *harness.Result, policy instruction.Policy) []harness.Check {
	return EffectsFromResult(res).Checks(policy)
}

// Capture processes ix on h and records it as a fixture.
func Capture(h *harness.Harness, name string, ix instruction.Instruction, accs []accounts.KeyedAccount) (*Fixture, *harness.Result) {
	res := h.Process(ix, accs)
	f := &Fixture{
		Name:             name,
		ProgramID:        h.ProgramID(),
		Programs:         h.Programs(),
		ComputeUnitLimit: h.ComputeUnitLimit(),
		Instruction:      ix.Clone(),
		Accounts:         accounts.CloneAll(accs),
		Effects:          EffectsFromResult(res),
	}
	logger.WithField("fixture", name).Debugf("captured, %d units", res.ComputeUnitsConsumed)
	return f, res
}

// NewHarness builds a harness with every program of f registered and the
// compute limit f was captured with.
func NewHarness(f *Fixture, opts ...harness.Option) (*harness.Harness, error) {
	artifact := ""
	for _, p := range f.Programs {
		if p.ID == f.ProgramID {
			artifact = p.Artifact
		}
	}
	if artifact == "" {
		return nil, errors.Wrapf(ErrInvalidFixture, "program under test %s is not recorded", f.ProgramID)
	}

	if f.ComputeUnitLimit != 0 {
		opts = append([]harness.Option{harness.WithComputeUnitLimit(f.ComputeUnitLimit)}, opts...)
	}
	h, err := harness.New(f.ProgramID, artifact, opts...)
	if err != nil {
		return nil, err
	}
	if err := registerPrograms(h, f); err != nil {
		return nil, err
	}
	return h, nil
}

// Replay runs f on h and evaluates it against the recorded effects.
// Programs recorded in f but missing from h are registered first.
func Replay(h *harness.Harness, f *Fixture) (*harness.Result, harness.Report, error) {
	if err := f.Validate(); err != nil {
		return nil, harness.Report{}, err
	}
	if err := registerPrograms(h, f); err != nil {
		return nil, harness.Report{}, err
	}
	if f.ComputeUnitLimit != 0 && f.ComputeUnitLimit != h.ComputeUnitLimit() {
		logger.WithField("fixture", f.Name).Warnf("captured with a limit of %d units, replaying with %d",
			f.ComputeUnitLimit, h.ComputeUnitLimit())
	}

	checks := f.Effects.Checks(h.Evaluator().Policy)
	res, report := h.ProcessAndValidate(f.Instruction, f.Accounts, checks...)
	if !report.Passed() {
		logger.WithField("fixture", f.Name).Debug(report.String())
	}
	return res, report, nil
}

func registerPrograms(h *harness.Harness, f *Fixture) error {
	for _, p := range f.Programs {
		if h.HasProgram(p.ID) {
			continue
		}
		if err := h.AddProgram(p.ID, p.Artifact); err != nil {
			return errors.Wrapf(err, "fixture %s", f.Name)
		}
	}
	return nil
}

// Encoding: magic, version, flags, blake3 checksum of the payload, then
// the gob payload, zstd compressed when flagCompressed is set.
var magic = []byte("X1HF")

const (
	version        = 1
	flagCompressed = 1 << 0
	headerSize     = 4 + 1 + 1 + types.HashSize
)

// Encode serializes f.
func Encode(f *Fixture, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, errors.Wrap(err, "encode fixture")
	}
	payload := buf.Bytes()

	var flags byte
	if compress {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(err, "zstd encoder")
		}
		payload = encoder.EncodeAll(payload, nil)
		encoder.Close()
		flags |= flagCompressed
	}

	sum := types.ComputeHash(payload)
	out := make([]byte, 0, headerSize+len(payload))
	out = append(out, magic...)
	out = append(out, version, flags)
	out = append(out, sum[:]...)
	return append(out, payload...), nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Fixture, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic) {
		return nil, ErrCorrupt
	}
	if data[4] != version {
		return nil, errors.Wrapf(ErrCorrupt, "version %d", data[4])
	}
	flags := data[5]
	var sum types.Hash
	copy(sum[:], data[6:headerSize])
	payload := data[headerSize:]
	if types.ComputeHash(payload) != sum {
		return nil, ErrChecksumMismatch
	}

	if flags&flagCompressed != 0 {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd decoder")
		}
		defer decoder.Close()
		payload, err = decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "decompress: %v", err)
		}
	}

	var f Fixture
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&f); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "decode: %v", err)
	}
	return &f, nil
}
