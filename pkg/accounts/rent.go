package accounts

// Rent parameters. The defaults match mainnet.
const (
	DefaultLamportsPerByteYear = uint64(3480)
	DefaultExemptionThreshold  = 2.0

	// AccountStorageOverhead is charged on top of the data length.
	AccountStorageOverhead = uint64(128)
)

// Rent determines the minimum balance an account must hold for its size.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent returns the mainnet rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance returns the lamports needed for an account with dataLen
// bytes of data to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytes := AccountStorageOverhead + uint64(dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover the minimum balance for dataLen.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

// RentStateKind classifies an account against the rent floor.
type RentStateKind uint8

const (
	// RentUninitialized means the account holds no lamports.
	RentUninitialized RentStateKind = iota
	// RentPaying means the account is funded but below the floor.
	RentPaying
	// RentExempt means the account is at or above the floor.
	RentExempt
)

// RentState captures what the transition rule needs to know about an account.
type RentState struct {
	Kind     RentStateKind
	Lamports uint64
	DataLen  int
}

// StateOf classifies an account.
func (r Rent) StateOf(a *Account) RentState {
	switch {
	case a.Lamports == 0:
		return RentState{Kind: RentUninitialized}
	case r.IsExempt(a.Lamports, len(a.Data)):
		return RentState{Kind: RentExempt}
	default:
		return RentState{Kind: RentPaying, Lamports: a.Lamports, DataLen: len(a.Data)}
	}
}

// TransitionAllowed reports whether an account may move from pre to post.
// An account may always end uninitialized or exempt. An account that ends
// rent-paying must already have been rent-paying with the same size and
// may not have gained lamports.
func TransitionAllowed(pre, post RentState) bool {
	switch post.Kind {
	case RentUninitialized, RentExempt:
		return true
	}
	if pre.Kind != RentPaying {
		return false
	}
	return post.DataLen == pre.DataLen && post.Lamports <= pre.Lamports
}
