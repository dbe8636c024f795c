package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
)

func userRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent("user", text)}}
}

func TestMockModel_CannedAndFallback(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hello", "hi there")

	resp, err := Collect(context.Background(), m, userRequest("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = Collect(context.Background(), m, userRequest("other"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())

	assert.Len(t, m.Requests(), 2)
}

func TestMockModel_QueueTakesPrecedence(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hello", "canned")
	m.EnqueueText("first", "second")

	for _, want := range []string{"first", "second", "canned"} {
		resp, err := Collect(context.Background(), m, userRequest("hello"), nil)
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content.Text())
	}
}

func TestMockModel_Error(t *testing.T) {
	m := NewMockModel("mock", "mock")
	boom := errors.New("boom")
	m.SetError(boom)

	_, err := Collect(context.Background(), m, userRequest("x"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestCollect_StreamsPartials(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.EnqueueText("abc")

	var sb strings.Builder
	req := userRequest("x")
	req.Stream = true
	resp, err := Collect(context.Background(), m, req, func(r Response) {
		sb.WriteString(r.Content.Text())
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", sb.String())
	assert.Equal(t, "abc", resp.Content.Text())
	assert.False(t, resp.Partial)
}

func TestCollect_CancelledContext(t *testing.T) {
	m := NewMockModel("mock", "mock")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, m, userRequest("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	r := make(chan Response)
	e := make(chan error)
	close(r)
	close(e)
	return r, e
}

func (silentModel) Info() Info { return Info{Name: "silent"} }

func TestCollect_NoFinalResponse(t *testing.T) {
	_, err := Collect(context.Background(), silentModel{}, userRequest("x"), nil)
	assert.ErrorIs(t, err, ErrNoResponse)
}
