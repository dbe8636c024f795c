package turn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
	"github.com/hupe1980/roundtable/model"
)

type stubParticipant struct{ name, desc string }

func (p stubParticipant) Name() string        { return p.name }
func (p stubParticipant) Description() string { return p.desc }
func (p stubParticipant) Respond(context.Context, []core.Message) (core.Message, error) {
	return core.NewAssistantMessage(p.name, "ok"), nil
}

func participants(names ...string) []core.Participant {
	out := make([]core.Participant, len(names))
	for i, n := range names {
		out[i] = stubParticipant{name: n, desc: n + " role"}
	}
	return out
}

func TestRoundRobin_Order(t *testing.T) {
	ps := participants("A", "B", "C")
	sel := NewRoundRobin()
	state := InitialState()

	var got []string
	for i := 0; i < 7; i++ {
		p, next, err := sel.Next(context.Background(), ps, nil, state)
		require.NoError(t, err)
		got = append(got, p.Name())
		state = next
	}
	assert.Equal(t, []string{"A", "B", "C", "A", "B", "C", "A"}, got)
	assert.Equal(t, 0, state.LastIndex)
}

func TestRoundRobin_IgnoresHistory(t *testing.T) {
	ps := participants("A", "B")
	sel := NewRoundRobin()

	p1, _, err := sel.Next(context.Background(), ps, nil, State{LastIndex: 0})
	require.NoError(t, err)
	p2, _, err := sel.Next(context.Background(), ps, testutil.History("user", "x", "B", "y", "B", "z"), State{LastIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, p1.Name(), p2.Name())
}

func TestRoundRobin_NoParticipants(t *testing.T) {
	_, state, err := NewRoundRobin().Next(context.Background(), nil, nil, InitialState())
	assert.ErrorIs(t, err, core.ErrNoParticipants)
	assert.Equal(t, InitialState(), state)
}

func TestFunc(t *testing.T) {
	ps := participants("A", "B")
	always := Func(func(_ context.Context, ps []core.Participant, _ []core.Message, _ State) (core.Participant, State, error) {
		return ps[1], State{LastIndex: 1}, nil
	})
	p, st, err := always.Next(context.Background(), ps, nil, InitialState())
	require.NoError(t, err)
	assert.Equal(t, "B", p.Name())
	assert.Equal(t, 1, st.LastIndex)
}

func TestModelSelector_PicksNamedParticipant(t *testing.T) {
	m := model.NewMockModel("selector", "mock")
	m.EnqueueText("**Teacher**")

	sel := NewModelSelector(m)
	ps := participants("Student", "Teacher")
	p, st, err := sel.Next(context.Background(), ps, testutil.History("user", "Explain gravity"), InitialState())
	require.NoError(t, err)
	assert.Equal(t, "Teacher", p.Name())
	assert.Equal(t, 1, st.LastIndex)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "- Student: Student role")
	assert.Contains(t, reqs[0].Instructions, "Student, Teacher")
	assert.Contains(t, reqs[0].Contents[0].Text(), "[user] Explain gravity")
}

func TestModelSelector_FallsBackOnUnknownAnswer(t *testing.T) {
	m := model.NewMockModel("selector", "mock")
	m.EnqueueText("Nobody in particular")

	sel := NewModelSelector(m)
	p, st, err := sel.Next(context.Background(), participants("A", "B"), nil, State{LastIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, "B", p.Name())
	assert.Equal(t, 1, st.LastIndex)
}

func TestModelSelector_FallsBackOnModelError(t *testing.T) {
	m := model.NewMockModel("selector", "mock")
	m.SetError(errors.New("rate limited"))

	p, _, err := NewModelSelector(m).Next(context.Background(), participants("A", "B"), nil, InitialState())
	require.NoError(t, err)
	assert.Equal(t, "A", p.Name())
}

func TestModelSelector_DisallowRepeat(t *testing.T) {
	m := model.NewMockModel("selector", "mock")
	m.EnqueueText("A")

	sel := NewModelSelector(m, func(o *ModelSelectorOptions) { o.AllowRepeat = false })
	p, _, err := sel.Next(context.Background(), participants("A", "B", "C"), nil, State{LastIndex: 0})
	require.NoError(t, err)
	// "A" spoke last, so the answer is rejected and round-robin picks B.
	assert.Equal(t, "B", p.Name())
	assert.NotContains(t, m.Requests()[0].Instructions, "- A:")
}

func TestModelSelector_NoParticipants(t *testing.T) {
	_, _, err := NewModelSelector(model.NewMockModel("m", "mock")).Next(context.Background(), nil, nil, InitialState())
	assert.ErrorIs(t, err, core.ErrNoParticipants)
}

func TestMatchParticipant(t *testing.T) {
	names := []string{"Writer", "Critic", "Art Director"}
	tests := []struct {
		answer string
		want   int
	}{
		{"Critic", 1},
		{"  critic. ", 1},
		{"I think the Art Director should speak.", 2},
		{"Writer or Critic", -1},
		{"", -1},
		{"nobody", -1},
		{"Critics", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchParticipant(names, tt.answer), tt.answer)
	}
}

func TestMatchParticipant_PrefixNames(t *testing.T) {
	names := []string{"Ann", "Anna"}
	tests := []struct {
		answer string
		want   int
	}{
		{"Anna should go next.", 1},
		{"Next: Ann", 0},
		{"anna", 1},
		{"Ann, then Anna", -1},
		{"Annabel", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchParticipant(names, tt.answer), tt.answer)
	}
}
