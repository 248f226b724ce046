package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of a Solana public key.
const PublicKeyLength = 32

// ErrInvalidAddress is returned for strings that are not base58 32-byte keys.
var ErrInvalidAddress = errors.New("invalid solana address")

// DecodeAddress decodes a base58 address into its 32 raw bytes.
func DecodeAddress(addr string) ([]byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	if len(raw) != PublicKeyLength {
		return nil, fmt.Errorf("%w: %s decodes to %d bytes", ErrInvalidAddress, addr, len(raw))
	}
	return raw, nil
}

// ValidateAddress checks that addr is a well-formed base58 public key.
func ValidateAddress(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// FindAssociatedTokenAddress derives the associated token account of owner
// for mint under the given token program.
func FindAssociatedTokenAddress(owner, mint, tokenProgram string) (string, error) {
	ownerKey, err := DecodeAddress(owner)
	if err != nil {
		return "", err
	}
	mintKey, err := DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	programKey, err := DecodeAddress(tokenProgram)
	if err != nil {
		return "", err
	}
	ataProgram, err := DecodeAddress(AssociatedTokenProgramID)
	if err != nil {
		return "", err
	}

	addr := findProgramAddress([][]byte{ownerKey, programKey, mintKey}, ataProgram)
	if addr == "" {
		return "", fmt.Errorf("no viable bump for associated token account of %s", owner)
	}
	return addr, nil
}

// findProgramAddress searches bumps from 255 down for an off-curve hash.
func findProgramAddress(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}
	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
