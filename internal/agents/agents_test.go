package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

type fakeDrafter struct {
	err error
	got drafting.Input
}

func (f *fakeDrafter) CreateDraft(_ context.Context, caseID string, in drafting.Input, _ string) (domain.DraftedDocument, error) {
	f.got = in
	if f.err != nil {
		return domain.DraftedDocument{}, f.err
	}
	return domain.DraftedDocument{ID: "d1", CaseID: caseID, Title: "PETIÇÃO INICIAL"}, nil
}

type fakeVerifier struct{ formal bool }

func (f fakeVerifier) VerifyDocument(context.Context, string, string) (domain.VerificationResult, error) {
	return domain.VerificationResult{ID: "v1", Criteria: domain.Criteria{FormalRequirements: f.formal}}, nil
}

type recordingNotifier struct{ msgs []notify.Message }

func (r *recordingNotifier) Notify(_ context.Context, m notify.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func TestDefaultCoversEveryStageAgent(t *testing.T) {
	set := Default(&fakeDrafter{}, fakeVerifier{}, notify.Nop{})
	for _, cfg := range stages.Ordered() {
		if _, ok := set.Get(cfg.RecommendedAgent); !ok {
			t.Errorf("no agent for stage %s (%s)", cfg.StageName, cfg.RecommendedAgent)
		}
	}
	if len(set.Kinds()) != stages.Count {
		t.Fatalf("kinds %v", set.Kinds())
	}
}

func TestTriageReportsMissingFields(t *testing.T) {
	res, err := Triage{}.Execute(context.Background(), Task{CaseID: "c1", Input: &drafting.Input{CaseData: drafting.CaseData{ClientName: "Maria"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Message == "" {
		t.Fatalf("expected failure with message, got %+v", res)
	}
	full := drafting.CaseData{ClientName: "Maria", ClientDocument: "123", OpposingParty: "Loja X"}
	res, _ = Triage{}.Execute(context.Background(), Task{Input: &drafting.Input{CaseData: full}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestStrategistAndResearcher(t *testing.T) {
	in := &drafting.Input{DocumentType: stages.DocPeticaoInicial, StrategyData: &drafting.StrategyData{MainThesis: "dano moral", Objectives: []string{"indenização"}}}
	if res, _ := (Strategist{}).Execute(context.Background(), Task{Input: in}); !res.Success {
		t.Fatalf("strategist: %+v", res)
	}
	if res, _ := (Researcher{}).Execute(context.Background(), Task{Input: in}); !res.Success {
		t.Fatalf("researcher: %+v", res)
	}
	in.DocumentType = "memorando"
	if res, _ := (Researcher{}).Execute(context.Background(), Task{Input: in}); res.Success {
		t.Fatalf("unknown document type must fail")
	}
	if res, _ := (Strategist{}).Execute(context.Background(), Task{Input: &drafting.Input{StrategyData: &drafting.StrategyData{MainThesis: "x"}}}); res.Success {
		t.Fatalf("strategist without objectives must fail")
	}
}

func TestAnalystSortsChronology(t *testing.T) {
	in := &drafting.Input{FactsAnalysis: &drafting.FactsAnalysis{Chronology: []drafting.Fact{
		{Date: "2024-03-10", Description: "b"},
		{Date: "2024-01-05", Description: "a"},
	}}}
	res, err := Analyst{}.Execute(context.Background(), Task{Input: in})
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	sorted := res.Details["chronology"].([]drafting.Fact)
	if sorted[0].Description != "a" {
		t.Fatalf("chronology not sorted: %+v", sorted)
	}
}

func TestWriterUsesDrafter(t *testing.T) {
	d := &fakeDrafter{}
	w := Writer{Drafter: d}
	res, err := w.Execute(context.Background(), Task{CaseID: "c1", Input: &drafting.Input{DocumentType: stages.DocPeticaoInicial}})
	if err != nil || !res.Success || res.Details["document_id"] != "d1" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	d.err = errors.New("disk full")
	if _, err := w.Execute(context.Background(), Task{CaseID: "c1", Input: &drafting.Input{DocumentType: stages.DocPeticaoInicial}}); err == nil {
		t.Fatalf("expected drafter error")
	}
	if res, _ := w.Execute(context.Background(), Task{Input: &drafting.Input{DocumentType: "x"}}); res.Success {
		t.Fatalf("unknown type must fail")
	}
}

func TestReviewerFollowsFormalRequirements(t *testing.T) {
	res, _ := Reviewer{Verifier: fakeVerifier{formal: false}}.Execute(context.Background(), Task{DocumentID: "d1"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	res, _ = Reviewer{Verifier: fakeVerifier{formal: true}}.Execute(context.Background(), Task{DocumentID: "d1"})
	if !res.Success {
		t.Fatalf("expected success")
	}
}

func TestCommunicatorNotifies(t *testing.T) {
	n := &recordingNotifier{}
	res, err := Communicator{Notifier: n}.Execute(context.Background(), Task{CaseID: "c1", Message: "Petição protocolada"})
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(n.msgs) != 1 || n.msgs[0].Category != domain.CategoryCase || n.msgs[0].CaseID != "c1" {
		t.Fatalf("unexpected messages %+v", n.msgs)
	}
}
