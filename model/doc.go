// Package model defines the provider-agnostic abstractions for the language
// models behind model-backed participants and selectors.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) live in sub-packages so higher layers remain
// decoupled from vendor SDKs.
package model
