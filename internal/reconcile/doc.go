// Package reconcile is the reconciliation engine. It keeps the declared
// validators, the declared packages and the installed validator assets
// consistent across init, add, remove and sync.
//
// Ownership boundary:
// - operation ordering and commit points
//
// - drift repair of the manifest
//
// - per-operation resolution memoisation
//
// The engine holds no state between operations. The manifest is only
// persisted after the package tool has confirmed the environment change.
package reconcile
