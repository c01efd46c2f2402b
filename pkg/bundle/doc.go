// Package bundle defines the versioned content bundle wire contract.
//
// Build maps an internal project, its creator and assets into a ContentBundle.
// Validate checks a bundle against the contract and reports path-qualified
// errors instead of failing, so callers can record them verbatim.
package bundle
