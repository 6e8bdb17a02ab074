// Package clearinghouse holds the trip ticket exchange rules: partnerships,
// visibility, the claim lifecycle, ticket updates and partner sync.
package clearinghouse

// Caller identifies who is acting. Every operation takes it explicitly.
type Caller struct {
	ProviderID uint
	UserID     uint
}
