package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

// Triage checks that the case can be received: the client is identified and
// the opposing party is known.
type Triage struct{}

func (Triage) Kind() string { return "triagem" }

func (Triage) Execute(_ context.Context, t Task) (Result, error) {
	if t.Input == nil {
		return fail("dados do caso não informados"), nil
	}
	cd := t.Input.CaseData
	var missing []string
	if strings.TrimSpace(cd.ClientName) == "" {
		missing = append(missing, "nome do cliente")
	}
	if strings.TrimSpace(cd.ClientDocument) == "" {
		missing = append(missing, "documento do cliente")
	}
	if strings.TrimSpace(cd.OpposingParty) == "" {
		missing = append(missing, "parte contrária")
	}
	if len(missing) > 0 {
		return Result{
			Message: "triagem incompleta: falta " + strings.Join(missing, ", "),
			Details: map[string]any{"missing": missing},
		}, nil
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("cliente %s identificado", cd.ClientName),
		Details: map[string]any{"artifacts": []string{stages.ArtifactCaseRegistered, stages.ArtifactClientIdentified}},
	}, nil
}

// Strategist requires a main thesis and at least one objective.
type Strategist struct{}

func (Strategist) Kind() string { return "estrategista" }

func (Strategist) Execute(_ context.Context, t Task) (Result, error) {
	if t.Input == nil || t.Input.StrategyData == nil {
		return fail("estratégia não informada"), nil
	}
	sd := t.Input.StrategyData
	if strings.TrimSpace(sd.MainThesis) == "" {
		return fail("tese principal não definida"), nil
	}
	var objectives []string
	for _, o := range sd.Objectives {
		if strings.TrimSpace(o) != "" {
			objectives = append(objectives, o)
		}
	}
	if len(objectives) == 0 {
		return fail("nenhum objetivo definido"), nil
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%d objetivo(s) definido(s)", len(objectives)),
		Details: map[string]any{
			"objectives": objectives,
			"artifacts":  []string{stages.ArtifactObjectivesDefined, stages.ArtifactStrategyOutlined},
		},
	}, nil
}

// Analyst orders the chronology and counts contested facts.
type Analyst struct{}

func (Analyst) Kind() string { return "analista" }

func (Analyst) Execute(_ context.Context, t Task) (Result, error) {
	if t.Input == nil || t.Input.FactsAnalysis == nil || len(t.Input.FactsAnalysis.Chronology) == 0 {
		return fail("cronologia dos fatos não informada"), nil
	}
	fa := t.Input.FactsAnalysis
	sorted := drafting.SortChronology(fa.Chronology)
	return Result{
		Success: true,
		Message: fmt.Sprintf("%d fato(s) analisado(s), %d controvertido(s)", len(sorted), len(fa.Contested)),
		Details: map[string]any{
			"chronology": sorted,
			"artifacts":  []string{stages.ArtifactFactsAnalyzed},
		},
	}, nil
}

// Researcher suggests, per objective, the legal sources the draft must cite.
type Researcher struct{}

func (Researcher) Kind() string { return "pesquisador" }

var researchSources = map[string][]string{
	stages.DocPeticaoInicial: {"CPC, art. 319", "CF, art. 5º, XXXV"},
	stages.DocContestacao:    {"CPC, art. 335", "CPC, art. 336"},
	stages.DocRecurso:        {"CPC, art. 1.009", "CPC, art. 1.010"},
	stages.DocParecer:        {"legislação aplicável ao caso"},
	stages.DocNotificacao:    {"CC, art. 397"},
}

func (Researcher) Execute(_ context.Context, t Task) (Result, error) {
	if t.Input == nil || t.Input.StrategyData == nil || len(t.Input.StrategyData.Objectives) == 0 {
		return fail("sem objetivos para pesquisar"), nil
	}
	sources := researchSources[t.Input.DocumentType]
	if len(sources) == 0 {
		return fail(fmt.Sprintf("tipo de documento desconhecido: %s", t.Input.DocumentType)), nil
	}
	topics := make(map[string][]string, len(t.Input.StrategyData.Objectives))
	for _, o := range t.Input.StrategyData.Objectives {
		topics[o] = sources
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("fundamentos sugeridos para %d objetivo(s)", len(topics)),
		Details: map[string]any{
			"sources":   topics,
			"artifacts": []string{stages.ArtifactLegalBasisResearch},
		},
	}, nil
}

// Writer renders and stores a draft through the Drafter.
type Writer struct {
	Drafter Drafter
}

func (Writer) Kind() string { return "redator" }

func (w Writer) Execute(ctx context.Context, t Task) (Result, error) {
	if t.Input == nil {
		return fail("dados para redação não informados"), nil
	}
	if _, ok := stages.Structure(t.Input.DocumentType); !ok {
		return fail(fmt.Sprintf("tipo de documento desconhecido: %s", t.Input.DocumentType)), nil
	}
	if w.Drafter == nil {
		return Result{}, fmt.Errorf("redator: drafter not configured")
	}
	doc, err := w.Drafter.CreateDraft(ctx, t.CaseID, *t.Input, t.ActorID)
	if err != nil {
		return Result{}, fmt.Errorf("redator: %w", err)
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("minuta %q gerada", doc.Title),
		Details: map[string]any{"document_id": doc.ID, "artifacts": []string{stages.ArtifactDraftProduced}},
	}, nil
}

// Reviewer verifies a stored draft and succeeds when formal requirements hold.
type Reviewer struct {
	Verifier Verifier
}

func (Reviewer) Kind() string { return "revisor" }

func (r Reviewer) Execute(ctx context.Context, t Task) (Result, error) {
	if strings.TrimSpace(t.DocumentID) == "" {
		return fail("documento para revisão não informado"), nil
	}
	if r.Verifier == nil {
		return Result{}, fmt.Errorf("revisor: verifier not configured")
	}
	res, err := r.Verifier.VerifyDocument(ctx, t.DocumentID, t.ActorID)
	if err != nil {
		return Result{}, fmt.Errorf("revisor: %w", err)
	}
	details := map[string]any{"verification_id": res.ID, "criteria": res.Criteria, "recommendations": res.Recommendations}
	if !res.Criteria.FormalRequirements {
		return Result{Message: "minuta não atende aos requisitos formais", Details: details}, nil
	}
	details["artifacts"] = []string{stages.ArtifactDraftVerified}
	return Result{Success: true, Message: fmt.Sprintf("minuta verificada com %d recomendação(ões)", len(res.Recommendations)), Details: details}, nil
}

// Communicator queues a client notification for the case.
type Communicator struct {
	Notifier notify.Notifier
}

func (Communicator) Kind() string { return "comunicador" }

func (c Communicator) Execute(ctx context.Context, t Task) (Result, error) {
	msg := strings.TrimSpace(t.Message)
	if msg == "" {
		return fail("mensagem ao cliente não informada"), nil
	}
	if c.Notifier == nil {
		return Result{}, fmt.Errorf("comunicador: notifier not configured")
	}
	err := c.Notifier.Notify(ctx, notify.Message{
		CaseID:   t.CaseID,
		Category: domain.CategoryCase,
		Priority: domain.PriorityLow,
		Title:    "Comunicação ao cliente",
		Body:     msg,
	})
	if err != nil {
		return Result{}, fmt.Errorf("comunicador: %w", err)
	}
	return Result{
		Success: true,
		Message: "cliente notificado",
		Details: map[string]any{"artifacts": []string{stages.ArtifactClientNotified}},
	}, nil
}
