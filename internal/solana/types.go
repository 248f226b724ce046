package solana

// Program IDs.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramID = "ATokenGPvbdQxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// TokenSupply from getTokenSupply.
type TokenSupply struct {
	Amount   string // raw amount, base units
	Decimals int
}

// TokenAccountBalance from getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address  string
	Amount   string // raw amount, base units
	Decimals int
}

// TokenAccount from getTokenAccountsByOwner.
type TokenAccount struct {
	Pubkey string
	Owner  string // program owning the account
	Mint   string // parsed mint, empty if the node did not parse the account
	Amount string // parsed raw amount, empty if not parsed
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
