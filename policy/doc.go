// Package policy maps storefront path prefixes to route guards, loaded from YAML.
//
// The embedded default protects the back-office portals by role and the shopper pages that
// need an account. Unmatched paths are public.
package policy
