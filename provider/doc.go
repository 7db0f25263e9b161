// Package provider defines the uniform contract between the studio and
// upstream text-generation services.
//
// Every upstream (OpenAI, Anthropic, Gemini) speaks its own streaming
// dialect: different event shapes, different delta fields, different
// error envelopes. A Provider implementation translates its dialect into
// one closed set of StreamEvents carrying nothing but text:
//
//   - Delim: stream boundary markers ("start", "end")
//   - Chunk: one incremental text fragment
//   - Response: the complete text of a finished generation
//   - Error: a classified upstream fault
//
// All other upstream metadata (token usage, finish reasons, safety
// annotations) is discarded at this boundary.
//
// Faults cross the boundary through Classify, which maps an arbitrary
// provider error onto a small closed taxonomy (Kind) plus an HTTP status
// and a provider-attributed message. Adapters that can recover an HTTP
// status from their SDK's error type should attach it with WithStatus
// before classification.
package provider
