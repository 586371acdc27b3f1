// Package agents holds the rule-based agents that perform the work of each
// workflow stage. The workflow engine only sees the Agent interface.
package agents

import (
	"context"
	"errors"
	"sort"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
)

// Task is what an agent is asked to do for a case.
type Task struct {
	CaseID     string          `json:"case_id"`
	Stage      string          `json:"stage"`
	ActorID    string          `json:"actor_id,omitempty"`
	Input      *drafting.Input `json:"input,omitempty"`
	DocumentID string          `json:"document_id,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Result is an agent's outcome. Callers that only orchestrate read Success
// and Message; Details is for display.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Agent interface {
	Kind() string
	Execute(ctx context.Context, task Task) (Result, error)
}

// Drafter renders and stores a draft for a case.
type Drafter interface {
	CreateDraft(ctx context.Context, caseID string, in drafting.Input, actorID string) (domain.DraftedDocument, error)
}

// Verifier verifies a stored draft.
type Verifier interface {
	VerifyDocument(ctx context.Context, documentID, actorID string) (domain.VerificationResult, error)
}

var ErrUnknownAgent = errors.New("unknown agent")

// Set indexes agents by kind.
type Set map[string]Agent

func NewSet(list ...Agent) Set {
	s := make(Set, len(list))
	for _, a := range list {
		s[a.Kind()] = a
	}
	return s
}

func (s Set) Get(kind string) (Agent, bool) {
	a, ok := s[kind]
	return a, ok
}

// Kinds returns the registered kinds in lexical order.
func (s Set) Kinds() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Default builds one agent per stage.
func Default(drafter Drafter, verifier Verifier, notifier notify.Notifier) Set {
	return NewSet(
		Triage{},
		Strategist{},
		Analyst{},
		Researcher{},
		Writer{Drafter: drafter},
		Reviewer{Verifier: verifier},
		Communicator{Notifier: notifier},
	)
}

func fail(msg string) Result {
	return Result{Success: false, Message: msg}
}
