package termination

import (
	"fmt"
	"strings"

	"github.com/hupe1980/roundtable/core"
)

// DefaultKeyword is the approval keyword of the Approval policy.
const DefaultKeyword = "approved"

// Decision is the outcome of a termination check. Reason is always non-empty.
type Decision struct {
	Terminate bool   `json:"terminate"`
	Reason    string `json:"reason"`
}

// Policy decides whether a run should stop given the transcript so far.
type Policy interface {
	ShouldTerminate(history []core.Message) Decision
}

// ApproverPolicy is implemented by policies that depend on a named approver.
// The engine uses it to reject configurations whose approver is not a
// participant.
type ApproverPolicy interface {
	Policy
	ApproverName() string
}

// Func adapts a function to the Policy interface.
type Func func(history []core.Message) Decision

// ShouldTerminate implements Policy.
func (f Func) ShouldTerminate(history []core.Message) Decision { return f(history) }

// Approval terminates when the designated approver's latest message contains
// the approval keyword. Only the last message is inspected, so earlier
// approvals do not count.
type Approval struct {
	Approver string
	Keyword  string
}

// NewApproval creates an approval policy for approver with the default keyword.
func NewApproval(approver string, optFns ...func(a *Approval)) *Approval {
	a := &Approval{Approver: approver, Keyword: DefaultKeyword}
	for _, fn := range optFns {
		fn(a)
	}
	return a
}

// ShouldTerminate implements Policy.
func (a *Approval) ShouldTerminate(history []core.Message) Decision {
	last, ok := core.LastMessage(history)
	if !ok {
		return Decision{Terminate: false, Reason: "no messages yet"}
	}

	keyword := strings.ToLower(a.Keyword)
	if keyword == "" {
		keyword = DefaultKeyword
	}

	if last.Author == a.Approver && strings.Contains(strings.ToLower(last.Content), keyword) {
		return Decision{Terminate: true, Reason: fmt.Sprintf("%s by %s", keyword, a.Approver)}
	}
	return Decision{Terminate: false, Reason: "not yet " + keyword}
}

// ApproverName implements ApproverPolicy.
func (a *Approval) ApproverName() string { return a.Approver }

// Never returns a policy that never terminates; runs end at the round cap.
func Never() Policy {
	return Func(func([]core.Message) Decision {
		return Decision{Terminate: false, Reason: "termination disabled"}
	})
}

type anyPolicy struct {
	policies []Policy
}

// Any combines policies; the first one deciding to terminate wins. When none
// terminates, the reason of the last policy is reported.
func Any(policies ...Policy) Policy {
	return &anyPolicy{policies: policies}
}

func (p *anyPolicy) ShouldTerminate(history []core.Message) Decision {
	d := Decision{Terminate: false, Reason: "no termination policy"}
	for _, pol := range p.policies {
		d = pol.ShouldTerminate(history)
		if d.Terminate {
			return d
		}
	}
	return d
}

// ApproverName reports the approver of the first wrapped ApproverPolicy, if any.
func (p *anyPolicy) ApproverName() string {
	for _, pol := range p.policies {
		if ap, ok := pol.(ApproverPolicy); ok {
			return ap.ApproverName()
		}
	}
	return ""
}

// MaxMessages terminates once the transcript holds at least n messages.
func MaxMessages(n int) Policy {
	return Func(func(history []core.Message) Decision {
		if len(history) >= n {
			return Decision{Terminate: true, Reason: fmt.Sprintf("reached %d messages", n)}
		}
		return Decision{Terminate: false, Reason: fmt.Sprintf("%d of %d messages", len(history), n)}
	})
}
