// Package turn provides speaker selection strategies for a multi-participant
// conversation.
//
// A Selector decides which participant speaks next given the ordered
// participant list, the transcript so far and its own State. Selectors are
// stateless values; everything they need to remember between turns is carried
// in the returned State, which the engine threads through a run.
//
// Built-in selectors:
//   - RoundRobin: participants[(LastIndex+1) mod N], ignores history content
//   - ModelSelector: asks a language model who should speak next and falls
//     back to another selector when the answer cannot be matched
//   - Func: adapts a plain function
package turn
