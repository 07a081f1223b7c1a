// Package manifest owns typed access to the project's pyproject.toml.
//
// Ownership boundary:
// - the packages projection ([project].dependencies)
//
// - the validators projection ([project].<validators key>)
//
// - atomic persistence that keeps every other byte of the file intact
//
// - uv workspace member discovery
//
// Everything outside the two projections belongs to the user or to uv and
// is never reformatted by a save.
package manifest
