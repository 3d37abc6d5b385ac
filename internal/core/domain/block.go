package domain

// Block is a block fetched with its full transaction bodies.
type Block struct {
	Number       uint64
	Hash         string
	ParentHash   string
	Timestamp    uint64
	Transactions []Transaction
}

// Log is a single contract event log. Addresses and topics are lower-case 0x hex.
type Log struct {
	Address string
	Topics  []string
	Data    []byte
	Index   uint
}

// Receipt is the execution outcome of a transaction.
type Receipt struct {
	TxHash string
	Status TxStatus
	Logs   []Log
}
