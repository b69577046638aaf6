// Package rate throttles storefront password logins with Redis fixed-window counters.
//
// # Window semantics
//
// A Lua script INCRs the counter and sets PEXPIRE on the first hit; checks read all keys in
// one pipeline. Key prefixes:
//   - sl:  login failures per username (lower-cased)
//   - sli: login failures per client IP
//
// # What this package must NOT do
//
//   - Decide what counts as a failure (the Manager reports failures).
//   - Be imported outside this module.
package rate
