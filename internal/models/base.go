package models

import (
	"strings"
)

// Address is a ledger identity (a seller, the registry, an asset collection).
// It is stored normalized: trimmed and lower-cased.
type Address string

// ZeroAddress is reported as the owner of a cleared listing.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// NewAddress normalizes a raw identity string.
func NewAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether a is empty or the zero address.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}
