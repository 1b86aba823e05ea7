package entity

import (
	"fmt"
	"time"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// UserRef is a user id owned by the external user directory. Chat records
// hold it by value with no foreign key, so a ref may point at a user that no
// longer exists and must be resolved before display.
type UserRef string

// String returns the raw id
func (r UserRef) String() string {
	return string(r)
}

// IsZero reports whether the ref is empty
func (r UserRef) IsZero() bool {
	return r == ""
}

// GenPairKey generates the order-independent key of a user pair
// Format: {min(userA,userB)}:{max(userA,userB)}
// Uses ":" as separator between userIds to support userIds containing "_"
func GenPairKey(userA, userB UserRef) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s:%s", userA, userB)
}
