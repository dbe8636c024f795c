package termination

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
)

func TestApproval(t *testing.T) {
	policy := NewApproval("Teacher")

	tests := []struct {
		name    string
		history []core.Message
		want    Decision
	}{
		{
			name:    "empty history",
			history: nil,
			want:    Decision{Terminate: false, Reason: "no messages yet"},
		},
		{
			name:    "approver approves",
			history: testutil.History("user", "task", "Student", "draft", "Teacher", "Looks good. Approved."),
			want:    Decision{Terminate: true, Reason: "approved by Teacher"},
		},
		{
			name:    "case folded keyword",
			history: testutil.History("Teacher", "APPROVED!"),
			want:    Decision{Terminate: true, Reason: "approved by Teacher"},
		},
		{
			name:    "keyword as substring",
			history: testutil.History("Teacher", "I have unapproved nothing"),
			want:    Decision{Terminate: true, Reason: "approved by Teacher"},
		},
		{
			name:    "other author says keyword",
			history: testutil.History("Student", "approved?"),
			want:    Decision{Terminate: false, Reason: "not yet approved"},
		},
		{
			name:    "approver without keyword",
			history: testutil.History("Teacher", "Try again."),
			want:    Decision{Terminate: false, Reason: "not yet approved"},
		},
		{
			name:    "only the last message counts",
			history: testutil.History("Teacher", "approved", "Student", "thanks"),
			want:    Decision{Terminate: false, Reason: "not yet approved"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldTerminate(tt.history))
		})
	}
}

func TestApproval_IsPure(t *testing.T) {
	policy := NewApproval("Teacher")
	history := testutil.History("user", "task", "Teacher", "approved")
	snapshot := append([]core.Message(nil), history...)

	first := policy.ShouldTerminate(history)
	second := policy.ShouldTerminate(history)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, history)
}

func TestApproval_CustomKeyword(t *testing.T) {
	policy := NewApproval("Art Director", func(a *Approval) { a.Keyword = "LGTM" })
	d := policy.ShouldTerminate(testutil.History("Art Director", "lgtm, ship it"))
	assert.True(t, d.Terminate)
	assert.Equal(t, "lgtm by Art Director", d.Reason)
	assert.Equal(t, "Art Director", policy.ApproverName())
}

func TestNever(t *testing.T) {
	d := Never().ShouldTerminate(testutil.History("Teacher", "approved"))
	assert.False(t, d.Terminate)
	assert.NotEmpty(t, d.Reason)
}

func TestAny(t *testing.T) {
	policy := Any(NewApproval("Teacher"), MaxMessages(3))

	d := policy.ShouldTerminate(testutil.History("user", "task", "Student", "a"))
	assert.False(t, d.Terminate)
	assert.Equal(t, "2 of 3 messages", d.Reason)

	d = policy.ShouldTerminate(testutil.History("user", "task", "Student", "a", "Student", "b"))
	assert.True(t, d.Terminate)
	assert.Equal(t, "reached 3 messages", d.Reason)

	d = policy.ShouldTerminate(testutil.History("Teacher", "approved"))
	assert.Equal(t, Decision{Terminate: true, Reason: "approved by Teacher"}, d)

	ap, ok := policy.(ApproverPolicy)
	assert.True(t, ok)
	assert.Equal(t, "Teacher", ap.ApproverName())

	assert.False(t, Any().ShouldTerminate(nil).Terminate)
}

func TestFunc(t *testing.T) {
	var seen int
	p := Func(func(h []core.Message) Decision {
		seen = len(h)
		return Decision{Terminate: true, Reason: "custom"}
	})
	d := p.ShouldTerminate(testutil.History("a", "b"))
	assert.True(t, d.Terminate)
	assert.Equal(t, 1, seen)
}
