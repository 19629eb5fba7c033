package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/vitwit/disburse/types"
)

var hexPattern = regexp.MustCompile("^[0-9a-fA-F]+$")

const (
	// maxAmountBits is the width of a token amount on chain.
	maxAmountBits = 256
	// maxAmountDigits is the decimal length of the largest uint256.
	maxAmountDigits = 78
)

// ValidateAmount checks if an amount string is a valid non-negative number.
// Plain integers too large for decimal parsing are accepted as well.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		bi, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount format: %w", err)
		}
		dec = decimal.NewFromBigInt(bi, 0)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ParseAmount converts a human entered token amount into minimal units.
// Digits below the smallest unit are dropped, never rounded.
func ParseAmount(amount string) (*big.Int, error) {
	return ParseAmountWithDecimals(amount, types.Decimals)
}

// ParseAmountWithDecimals parses a decimal amount string and converts it to an
// integer amount with the given number of decimals, truncating the remainder.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	coef := dec.Coefficient()
	if coef.Sign() == 0 {
		return new(big.Int), nil
	}

	// Integer digits of the result, bounded before Shift so a huge exponent
	// never gets expanded.
	digits := int64(len(coef.String())) + int64(dec.Exponent()) + int64(decimals)
	if digits > maxAmountDigits {
		return nil, fmt.Errorf("amount out of range: exceeds %d bits", maxAmountBits)
	}
	if digits <= 0 {
		return new(big.Int), nil
	}

	units := dec.Shift(int32(decimals)).BigInt()
	if units.BitLen() > maxAmountBits {
		return nil, fmt.Errorf("amount out of range: exceeds %d bits", maxAmountBits)
	}
	return units, nil
}

// FitsAmount reports whether v is representable as an on-chain token amount.
func FitsAmount(v *big.Int) bool {
	return v.Sign() >= 0 && v.BitLen() <= maxAmountBits
}

// FormatAmount renders minimal units in display units without trailing zeros.
func FormatAmount(amount *big.Int) string {
	return FormatAmountFromBigInt(amount, types.Decimals)
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// TokenUnits returns 10^decimals.
func TokenUnits(decimals int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// ValidateAddress parses a 0x prefixed, 42 character hex account address.
func ValidateAddress(address string) (common.Address, error) {
	if address == "" {
		return common.Address{}, fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return common.Address{}, fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return common.Address{}, fmt.Errorf("address must be 42 characters long")
	}
	if !hexPattern.MatchString(address[2:]) {
		return common.Address{}, fmt.Errorf("address must be valid hex")
	}
	return common.HexToAddress(address), nil
}
