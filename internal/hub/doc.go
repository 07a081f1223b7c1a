// Package hub resolves Guardrails Hub validator identifiers.
//
// Ownership boundary:
// - hub:// identifier syntax
//
// - identifier -> installable package mapping
//
// - installation directive for the asset installer
//
// - hub credentials discovery
//
// Resolution is never cached here; callers that want to avoid repeated
// lookups inside one operation memoise on their side.
package hub
