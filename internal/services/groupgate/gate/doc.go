// Package gate decides whether a pending game login may proceed based on the
// account's membership of the required group.
//
// A Gate prefers a live Oracle answer and writes it back to the membership
// store on a best-effort basis. Without an oracle, or when the oracle fails,
// it falls back to the last stored record. Store failures on the fallback path
// deny the login; store failures while recording a live answer are logged and
// ignored.
package gate
