package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// Account layout sizes.
const (
	MintLayoutSize    = 82
	AccountLayoutSize = 165 // Token-2022 pads mints to this before the account type byte
)

// RiskyExtensions maps Token-2022 extension type ids to names.
var RiskyExtensions = map[uint16]string{
	1:  "transfer_fee_config",
	6:  "permanent_delegate",
	9:  "default_account_state",
	12: "non_transferable",
	13: "transfer_hook",
}

// Mint is the decoded base mint layout.
type Mint struct {
	MintAuthority   string // empty when the option is None
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority string // empty when the option is None
}

// ParseMint decodes a base64 mint account into the base SPL layout.
//
// Layout: mint_authority_option u32 | mint_authority [32] | supply u64 |
// decimals u8 | is_initialized bool | freeze_authority_option u32 | freeze_authority [32].
func ParseMint(data string) (*Mint, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint data: %w", err)
	}
	if len(raw) < MintLayoutSize {
		return nil, fmt.Errorf("mint data too short: %d bytes", len(raw))
	}

	m := &Mint{
		Supply:        binary.LittleEndian.Uint64(raw[36:44]),
		Decimals:      raw[44],
		IsInitialized: raw[45] != 0,
	}
	if binary.LittleEndian.Uint32(raw[0:4]) == 1 {
		m.MintAuthority = base58.Encode(raw[4:36])
	}
	if binary.LittleEndian.Uint32(raw[46:50]) == 1 {
		m.FreezeAuthority = base58.Encode(raw[50:82])
	}
	return m, nil
}

// RiskyExtensionsIn walks the Token-2022 extension TLV area of a mint
// account and returns the names of risky extensions in on-chain order.
// Plain SPL mints have no extension area and yield nil.
func RiskyExtensionsIn(data string) ([]string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint data: %w", err)
	}
	if len(raw) <= AccountLayoutSize {
		return nil, nil
	}

	var names []string
	offset := AccountLayoutSize + 1 // skip account type byte
	for offset+4 <= len(raw) {
		extType := binary.LittleEndian.Uint16(raw[offset : offset+2])
		extLen := int(binary.LittleEndian.Uint16(raw[offset+2 : offset+4]))
		if extType == 0 {
			break
		}
		if name, ok := RiskyExtensions[extType]; ok {
			names = append(names, name)
		}
		offset += 4 + extLen
	}
	return names, nil
}
