package model

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	// AddressLen is the decoded length of an account address.
	AddressLen = 32

	// SignatureLen is the decoded length of a transaction signature.
	SignatureLen = 64
)

// ValidateAddress checks that s is a base58-encoded 32-byte address.
func ValidateAddress(s string) error {
	return validateBase58(s, AddressLen, "address")
}

// ValidateSignature checks that s is a base58-encoded 64-byte signature.
func ValidateSignature(s string) error {
	return validateBase58(s, SignatureLen, "signature")
}

func validateBase58(s string, size int, what string) error {
	if s == "" {
		return fmt.Errorf("%s is empty", what)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%s %q is not base58: %w", what, s, err)
	}
	if len(raw) != size {
		return fmt.Errorf("%s %q decodes to %d bytes, want %d", what, s, len(raw), size)
	}
	return nil
}
