package types

const (
	// ModuleName is the tide protocol-config module namespace.
	ModuleName = "tide"

	// StoreKey is the module KV store key.
	StoreKey = ModuleName
)

var (
	// ProtocolConfigKey stores the protocol-wide config record.
	ProtocolConfigKey = []byte{0x01}

	// CouncilConfigKey stores the pause council structure.
	CouncilConfigKey = []byte{0x02}
)
