package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
)

var palette = []color.Attribute{
	color.FgCyan,
	color.FgMagenta,
	color.FgYellow,
	color.FgGreen,
	color.FgBlue,
	color.FgRed,
}

// nameStyler assigns each participant a stable color in order of appearance.
type nameStyler struct {
	mu     sync.Mutex
	colors map[string]*color.Color
}

func newNameStyler(names []string) *nameStyler {
	s := &nameStyler{colors: make(map[string]*color.Color, len(names))}
	for i, n := range names {
		s.colors[n] = color.New(palette[i%len(palette)], color.Bold)
	}
	return s
}

func (s *nameStyler) format(name string) string {
	s.mu.Lock()
	c, ok := s.colors[name]
	s.mu.Unlock()
	if !ok {
		c = color.New(color.Bold)
	}
	return c.Sprintf("**%s**", name)
}

// streamPrinter prints partial chunks as they arrive and completes the block
// once the message is appended. Messages that were never streamed (scripted
// participants) are printed in full.
type streamPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	styler   *nameStyler
	streamed map[string]bool
}

var _ engine.Observer = (*streamPrinter)(nil)

func newStreamPrinter(w io.Writer, styler *nameStyler) *streamPrinter {
	return &streamPrinter{w: w, styler: styler, streamed: map[string]bool{}}
}

// OnPartial receives streamed chunks from model participants.
func (p *streamPrinter) OnPartial(participant, chunk string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.streamed[participant] {
		p.streamed[participant] = true
		fmt.Fprintf(p.w, "%s\n", p.styler.format(participant))
	}
	fmt.Fprint(p.w, chunk)
}

// OnMessage implements engine.Observer.
func (p *streamPrinter) OnMessage(_ context.Context, msg core.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamed[msg.Author] {
		delete(p.streamed, msg.Author)
		_, err := fmt.Fprint(p.w, "\n\n")
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s\n%s\n\n", p.styler.format(msg.Author), msg.Content)
	return err
}
