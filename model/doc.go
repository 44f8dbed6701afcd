// Package model defines the contract between the agent runtime and AI model
// providers. It stays wire-agnostic: nothing in here speaks HTTP, providers
// live in their own packages and implement these interfaces.
//
// Design decisions:
//   - Poll-style streaming: a Response hands out one event per NextEvent
//     call instead of pushing to a channel, so the consumer decides where
//     draining happens and cancellation composes with context.
//   - Sealed unions: Message and ResponseEvent are interfaces with an
//     unexported marker method; the variant set is fixed in this package and
//     switches over them stay exhaustive.
//   - Opaque provider turns: a provider may return the assistant turn in its
//     own native shape. The runtime stores it untouched and hands it back on
//     the next request, so provider-side richness (tool-call framing, refusals)
//     survives the round trip without the runtime understanding it.
//   - Typed errors: Error carries a kind (moderation, rate limit, other) so
//     callers can pick a retry policy without string matching.
//
// The event order inside a response is fixed: message deltas stream first in
// arrival order, then the fully assembled tool calls, then exactly one
// Completed. After the terminal outcome a response keeps reporting io.EOF.
package model
