package participant

import (
	"context"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/util"
)

// InstructionContext is the data available when an instruction is resolved.
// Static instructions may reference it as template fields, e.g. {{.Name}}.
type InstructionContext struct {
	Name        string
	Description string
	History     []core.Message
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, ic InstructionContext) (string, error)
}

// ProviderFunc is a functional adapter to allow ordinary functions to be used as Providers.
type ProviderFunc func(ctx context.Context, ic InstructionContext) (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction(ctx context.Context, ic InstructionContext) (string, error) {
	return f(ctx, ic)
}

// Instruction is either a static template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static text/template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, ic InstructionContext) (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction carries neither text nor provider.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider or rendering the
// template as needed.
func (i Instruction) Resolve(ctx context.Context, ic InstructionContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, ic)
	}
	return util.RenderTemplate(i.text, map[string]any{
		"Name":        ic.Name,
		"Description": ic.Description,
		"History":     ic.History,
	})
}
