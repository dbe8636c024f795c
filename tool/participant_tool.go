package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/roundtable/core"
)

// ParticipantToolOptions configures a participant tool.
type ParticipantToolOptions struct {
	// Name overrides the tool name. Defaults to the participant name in
	// snake_case.
	Name string
	// Description overrides the participant description.
	Description string
}

// participantTool lets one participant consult another as a function call.
type participantTool struct {
	participant core.Participant
	name        string
	description string
}

// NewParticipantTool exposes p as a tool taking a single "request" argument.
// Every call starts a fresh single-message conversation with p and returns
// its reply text.
func NewParticipantTool(p core.Participant, optFns ...func(o *ParticipantToolOptions)) Tool {
	opts := ParticipantToolOptions{
		Name:        toolName(p.Name()),
		Description: p.Description(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Description == "" {
		opts.Description = fmt.Sprintf("Ask %s for help.", p.Name())
	}
	return &participantTool{participant: p, name: opts.Name, description: opts.Description}
}

func (t *participantTool) Name() string        { return t.name }
func (t *participantTool) Description() string { return t.description }

func (t *participantTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("The question or task for %s.", t.participant.Name()),
			},
		},
		"required": []string{"request"},
	}
}

func (t *participantTool) Call(ctx context.Context, args map[string]any) (any, error) {
	request, _ := args["request"].(string)
	if strings.TrimSpace(request) == "" {
		return nil, NewToolError(t.name, "request must be a non-empty string", CodeValidation)
	}

	msg, err := t.participant.Respond(ctx, []core.Message{core.NewUserMessage(request)})
	if err != nil {
		return nil, core.NewParticipantError(t.participant.Name(), err)
	}
	return msg.Content, nil
}

// toolName converts a display name like "Art Director" into "art_director".
func toolName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "participant"
	}
	return b.String()
}
