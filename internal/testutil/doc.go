// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing messages, transcripts and model content.
// They are not intended for production usage.
package testutil
