// Package openai implements the model provider contract on top of the
// OpenAI chat completions API, using the official openai-go client in
// streaming mode.
//
// Text deltas are surfaced as they arrive. Tool calls stream in as indexed
// fragments and are only surfaced once the stream ends and the SDK's
// accumulator has stitched them back together, so consumers always see
// complete calls. The assembled assistant message doubles as the opaque
// conversation turn: follow-up requests replay it verbatim, tool-call
// framing included.
package openai
