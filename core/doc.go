// Package core provides the foundational domain types and interfaces used by
// roundtable. It defines the core abstractions for:
//
//   - Messages (immutable utterances tagged with author, role and sequence index)
//   - Transcripts (append-only, ordered conversation history of one run)
//   - Participants (named conversational entities producing one reply per turn)
//   - Run results and the run state machine (Idle, Running, terminal states)
//   - Threads and ThreadStore (per-conversation memory for single-agent chats)
//   - Model content parts shared by model providers and tools
//
// The package keeps implementation concerns (turn selection, termination,
// providers, persistence backends) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
