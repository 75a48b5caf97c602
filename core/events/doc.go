// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - connection.*: socket lifecycle observed through the state machine.
//   - user_input.*: microphone-side activity and transcripts.
//   - assistant_speech.*: synthesized speech playback activity.
//   - assistant_message.*: streamed response text.
//   - session.*: scenario completion and session termination.
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current utterance.
package events
