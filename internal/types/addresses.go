package types

// Program addresses known to the runtime.
var (
	// SystemProgramAddr is the System Program address (all zero bytes).
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// NativeLoaderAddr owns builtin program accounts.
	NativeLoaderAddr = MustPubkeyFromBase58("NativeLoader1111111111111111111111111111111")

	// BPFLoaderUpgradeableAddr owns registered program accounts.
	BPFLoaderUpgradeableAddr = MustPubkeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

	// IncineratorAddr is the sink that receives lamports of closed accounts.
	IncineratorAddr = MustPubkeyFromBase58("1nc1nerator11111111111111111111111111111111")
)

// IsBuiltinProgram returns true if the pubkey names a program that is
// executed natively rather than through the loader.
func IsBuiltinProgram(p Pubkey) bool {
	return p == SystemProgramAddr
}

// IsLoader returns true if the pubkey is one of the program owners.
func IsLoader(p Pubkey) bool {
	switch p {
	case NativeLoaderAddr, BPFLoaderUpgradeableAddr:
		return true
	default:
		return false
	}
}
