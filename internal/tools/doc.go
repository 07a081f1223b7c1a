// Package tools provides the process-execution primitives shared by the
// external tool adapters.
//
// Ownership boundary:
// - command execution helpers
//
// - tool invocation error shape
//
// Adapters never interpret why a tool failed; they surface exit code and
// captured stderr through ToolInvocationError.
package tools
