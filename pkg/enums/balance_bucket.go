package enums

import "fmt"

// BalanceBucket is a named sub-balance segregating funds by purpose.
type BalanceBucket string

const (
	BucketWallet   BalanceBucket = "wallet"
	BucketReserved BalanceBucket = "reserved"
	BucketEarnings BalanceBucket = "earnings"
	BucketEscrow   BalanceBucket = "escrow"
	BucketPending  BalanceBucket = "pending"
)

var validBalanceBuckets = []BalanceBucket{
	BucketWallet,
	BucketReserved,
	BucketEarnings,
	BucketEscrow,
	BucketPending,
}

// String implements fmt.Stringer.
func (b BalanceBucket) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BalanceBucket.
func (b BalanceBucket) IsValid() bool {
	for _, candidate := range validBalanceBuckets {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBalanceBucket converts raw input into a BalanceBucket.
func ParseBalanceBucket(value string) (BalanceBucket, error) {
	for _, candidate := range validBalanceBuckets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance bucket %q", value)
}
