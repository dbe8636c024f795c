// Package session houses concrete implementations of core.ThreadStore.
//
// The interface itself (and the Thread struct) live in the core package so
// that higher level packages (conversation, the facade) never depend on a
// concrete storage backend. Additional backends can be added in sub-packages
// without changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package session
