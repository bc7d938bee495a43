// Package entitlement decides whether a user may receive the full content of
// a book. Both download routes call CanAccessFull; the predicate lives only
// here.
package entitlement

import "github.com/gitaditya567/itskillhub/pkg/domain"

// CanAccessFull reports whether user has purchased bookID or is an admin.
// The user must be freshly resolved for the current request because its
// purchase set changes when orders complete.
func CanAccessFull(user domain.User, bookID string) bool {
	if user.Role == domain.RoleAdmin {
		return true
	}
	if bookID == "" {
		return false
	}
	return user.HasPurchased(bookID)
}
