package types

const (
	// ModuleName is the launch module namespace. The module account under
	// this name custodies raised principal until tranches release it.
	ModuleName = "launch"

	// RewardPoolName is the dedicated module account holding routed revenue
	// until supporters claim it.
	RewardPoolName = "launch_rewards"

	// TreasuryModuleName is the default protocol treasury account. The
	// active treasury address is read from the tide module config and may
	// point elsewhere.
	TreasuryModuleName = "launch_treasury"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName

	// RouterKey defines the module's message routing key
	RouterKey = ModuleName
)

var (
	// ListingKeyPrefix stores listing records.
	ListingKeyPrefix = []byte{0x01}

	// CapitalVaultKeyPrefix stores per-listing principal vaults.
	CapitalVaultKeyPrefix = []byte{0x02}

	// RewardVaultKeyPrefix stores per-listing reward vaults.
	RewardVaultKeyPrefix = []byte{0x03}

	// PassKeyPrefix stores supporter passes.
	PassKeyPrefix = []byte{0x04}

	// YieldPositionKeyPrefix stores per-listing yield positions.
	YieldPositionKeyPrefix = []byte{0x05}

	// RouteGrantKeyPrefix tracks which addresses may route revenue into a
	// listing's reward vault. Keys are "<listing-id>|<grantee>".
	RouteGrantKeyPrefix = []byte{0x06}

	// BackerKeyPrefix tracks unique depositors per listing. Keys are
	// "<listing-id>|<backer>".
	BackerKeyPrefix = []byte{0x07}

	// ListingCountKey stores the next listing sequence.
	ListingCountKey = []byte{0x08}

	// PassCountKey stores the next pass sequence.
	PassCountKey = []byte{0x09}

	// ParamsKey stores module params.
	ParamsKey = []byte{0x0A}

	// LastBlockTimeKey stores the most recent block time seen by the app's
	// BeginBlocker, used for liveness reporting.
	LastBlockTimeKey = []byte{0x0B}
)

// PairKey joins a listing id and a member key into the composite form used
// by the route-grant and backer sets.
func PairKey(listingID, member string) string {
	return listingID + "|" + member
}
