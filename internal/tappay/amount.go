package tappay

import "github.com/shopspring/decimal"

// ToVendorAmount converts a platform amount to the integer the vendor API is
// sent: the value is quantized to three fractional digits (half-even) and the
// fraction is then dropped, so 10.005 becomes 10.
func ToVendorAmount(amount decimal.Decimal) int64 {
	return amount.RoundBank(3).Truncate(0).IntPart()
}
