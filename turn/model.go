package turn

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/util"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
)

// DefaultSelectorPrompt is the instruction template of ModelSelector. It is
// rendered with .Participants (name and description of each) and .Names.
const DefaultSelectorPrompt = `You are coordinating a group conversation between these participants:
{{range .Participants}}- {{.Name}}: {{.Description}}
{{end}}
Read the conversation and decide who should speak next.
Reply with exactly one name from: {{join ", " .Names}}.`

// ModelSelectorOptions configures a ModelSelector.
type ModelSelectorOptions struct {
	// Prompt is a text/template rendered into the model instructions.
	Prompt string
	// Fallback is used when the model fails or its answer names no participant.
	Fallback Selector
	// AllowRepeat permits selecting the previous speaker again.
	AllowRepeat bool
	Logger      logging.Logger
}

// ModelSelector asks a language model which participant should speak next.
type ModelSelector struct {
	model model.Model
	opts  ModelSelectorOptions
}

// NewModelSelector creates a model driven selector with a round-robin fallback.
func NewModelSelector(m model.Model, optFns ...func(o *ModelSelectorOptions)) *ModelSelector {
	opts := ModelSelectorOptions{
		Prompt:      DefaultSelectorPrompt,
		Fallback:    NewRoundRobin(),
		AllowRepeat: true,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelSelector{model: m, opts: opts}
}

type candidate struct {
	Name        string
	Description string
}

// Next implements Selector.
func (s *ModelSelector) Next(ctx context.Context, participants []core.Participant, history []core.Message, state State) (core.Participant, State, error) {
	if len(participants) == 0 {
		return nil, state, core.ErrNoParticipants
	}

	req, err := s.buildRequest(participants, history, state)
	if err != nil {
		return nil, state, err
	}

	resp, err := model.Collect(ctx, s.model, req, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, state, ctx.Err()
		}
		s.opts.Logger.Warn("Speaker selection failed, using fallback", "error", err)
		return s.opts.Fallback.Next(ctx, participants, history, state)
	}

	answer := resp.Content.Text()
	idx := matchParticipant(s.eligible(participants, state), answer)
	if idx < 0 {
		s.opts.Logger.Warn("Speaker selection answer not understood, using fallback", "answer", answer)
		return s.opts.Fallback.Next(ctx, participants, history, state)
	}

	s.opts.Logger.Debug("Speaker selected", "participant", participants[idx].Name())
	return participants[idx], State{LastIndex: idx}, nil
}

// eligible returns the candidate list; the previous speaker is replaced by an
// empty slot when repeats are disallowed so indices stay aligned.
func (s *ModelSelector) eligible(participants []core.Participant, state State) []string {
	names := core.ParticipantNames(participants)
	if !s.opts.AllowRepeat && len(names) > 1 && state.LastIndex >= 0 && state.LastIndex < len(names) {
		names[state.LastIndex] = ""
	}
	return names
}

func (s *ModelSelector) buildRequest(participants []core.Participant, history []core.Message, state State) (model.Request, error) {
	var cands []candidate
	var names []string
	for i, n := range s.eligible(participants, state) {
		if n == "" {
			continue
		}
		cands = append(cands, candidate{Name: n, Description: participants[i].Description()})
		names = append(names, n)
	}

	instructions, err := util.RenderTemplate(s.opts.Prompt, map[string]any{
		"Participants": cands,
		"Names":        names,
	})
	if err != nil {
		return model.Request{}, fmt.Errorf("render selector prompt: %w", err)
	}

	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Author, m.Content)
	}
	if sb.Len() == 0 {
		sb.WriteString("(the conversation has not started yet)\n")
	}
	sb.WriteString("\nWho speaks next?")

	return model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewTextContent("user", sb.String())},
	}, nil
}

// matchParticipant resolves a free-form model answer to a participant index.
// An exact (case-insensitive) match wins; otherwise the answer must mention
// exactly one name as a whole word, so "Anna" never counts as "Ann".
func matchParticipant(names []string, answer string) int {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(answer), "*\"'`.:[] \n"))
	if cleaned == "" {
		return -1
	}
	for i, n := range names {
		if n != "" && strings.ToLower(n) == cleaned {
			return i
		}
	}

	found := -1
	for i, n := range names {
		if n == "" || !mentionsWord(cleaned, strings.ToLower(n)) {
			continue
		}
		if found >= 0 {
			return -1
		}
		found = i
	}
	return found
}

// mentionsWord reports whether word occurs in text delimited by non-word
// characters or the text edges.
func mentionsWord(text, word string) bool {
	for from := 0; from <= len(text)-len(word); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
