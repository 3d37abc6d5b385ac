package domain

type ChainID string
type ChainName string

const (
	ChainIDBSC        ChainID = "56"
	ChainIDBSCTestnet ChainID = "97"
	ChainIDEthereum   ChainID = "1"

	ChainNameBSC        ChainName = "BSC_MAINNET"
	ChainNameBSCTestnet ChainName = "BSC_TESTNET"
	ChainNameEthereum   ChainName = "ETHEREUM_MAINNET"
)

// ChainIDToName maps ChainID to its human-readable name.
var ChainIDToName = map[ChainID]ChainName{
	ChainIDBSC:        ChainNameBSC,
	ChainIDBSCTestnet: ChainNameBSCTestnet,
	ChainIDEthereum:   ChainNameEthereum,
}

// Name returns the known chain name, or the raw id.
func (c ChainID) Name() string {
	if n, ok := ChainIDToName[c]; ok {
		return string(n)
	}
	return string(c)
}
