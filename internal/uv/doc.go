// Package uv is the package tool adapter: one method per uv subcommand,
// run quietly with captured output, plus a terminal-attached forwarder for
// commands uvguard does not reconcile.
//
// Failures surface as *tools.ToolInvocationError. The adapter never
// interprets why uv failed.
package uv
