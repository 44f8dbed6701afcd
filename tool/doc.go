// Package tool defines the capability surface an agent can hand to the
// model: named tools with JSON-schema parameters, typed execution, and the
// approval handshake that gates side effects.
//
// Design decisions:
//   - Tools see raw JSON: Execute receives the model's argument bytes and
//     owns the decode, so a malformed call becomes a typed InvalidInput
//     failure instead of a crash somewhere upstream.
//   - Typed adapters: New reflects a Go struct into the parameter schema and
//     wraps a plain func(ctx, T) so most tools never touch raw JSON.
//   - One-shot approvals: an Approval resolves exactly once, from any
//     goroutine, and resolving after the asking agent died is a harmless
//     no-op. Hosts that never look at approvals get auto-approve behavior.
//   - Failure as data: a *Error result is not an infrastructure fault; its
//     rendered reason flows back to the model as the tool's output.
package tool
