package utils

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Uint256ToString converts a *uint256.Int to string, returning "0" if nil
func Uint256ToString(value *uint256.Int) string {
	if value == nil {
		return "0"
	}
	return value.Dec()
}

// EncodeBalance is the stored form of a balance: decimal UTF-8 text
func EncodeBalance(balance *uint256.Int) []byte {
	return []byte(Uint256ToString(balance))
}

// DecodeBalance parses a stored balance. Absent or empty data is a zero balance.
func DecodeBalance(data []byte) (*uint256.Int, error) {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return uint256.NewInt(0), nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, fmt.Errorf("stored balance %q is not a decimal integer", s)
		}
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("stored balance %q: %w", s, err)
	}
	return v, nil
}
