// Package drafting composes legal-document text from structured case data.
//
// Render runs a fixed pipeline of section generators (header, qualification,
// facts, legal basis, requests, conclusion). Every generator is total: a
// missing input becomes a bracketed placeholder the reviewing lawyer fills in.
// The output carries no clock or random data, so the same input always
// renders the same bytes.
package drafting

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

// Section headings and fixed markers the verification engine looks for.
const (
	HeaderPrefix       = "EXCELENTÍSSIMO(A) SENHOR(A) DOUTOR(A) JUIZ(A) DE DIREITO DA"
	HeadingFacts       = "DOS FATOS"
	HeadingLegalBasis  = "DO DIREITO"
	HeadingRequests    = "DOS PEDIDOS"
	QualificationMark  = "inscrito(a) sob o nº"
	DeferralClosing    = "Pede deferimento."
	OpinionClosing     = "É o parecer, salvo melhor juízo."
	CaseValuePrefix    = "Dá-se à causa o valor de"
	CitationRequest    = "a citação da parte ré para, querendo, apresentar resposta no prazo legal, sob pena de revelia;"
	CostsRequest       = "Requer, ainda, a condenação da parte contrária ao pagamento das custas processuais e dos honorários advocatícios."
	EvidenceRequest    = "Protesta provar o alegado por todos os meios de prova em direito admitidos."
	DevelopPlaceholder = "[Desenvolver a argumentação jurídica deste tópico.]"
	CitePlaceholder    = "[Citação legal, doutrinária ou jurisprudencial]"
	FactsPlaceholder   = "[Descrever os fatos relevantes do caso em ordem cronológica.]"
	ThesisPlaceholder  = "[Expor a tese jurídica principal.]"
	MainRequestPH      = "[Pedido principal]"
	AlternativeRequest = "[Pedido subsidiário]"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339, "2006-01-02T15:04:05"}

// Render composes a draft from the input. It never fails.
func Render(in Input) Draft {
	parts := []string{
		renderHeader(in),
		renderQualification(in),
		renderFacts(in),
		renderLegalBasis(in),
		renderRequests(in),
		renderConclusion(in),
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	sections, ok := stages.Structure(in.DocumentType)
	if !ok {
		sections = stages.AllSections()
	}
	return Draft{
		DocumentType: in.DocumentType,
		Title:        Title(in),
		Sections:     sections,
		Content:      strings.Join(kept, "\n\n") + "\n",
	}
}

// Title builds the document title from its type and client.
func Title(in Input) string {
	name := stages.DocumentTitle(in.DocumentType)
	if name == "" {
		name = "Documento"
	}
	if in.CaseData.ClientName == "" {
		return name
	}
	return name + " - " + in.CaseData.ClientName
}

func orPlaceholder(v, placeholder string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return placeholder
}

func renderHeader(in Input) string {
	forum := orPlaceholder(strings.ToUpper(in.CaseData.Forum), "[VARA/COMARCA]")
	return HeaderPrefix + " " + forum
}

func renderQualification(in Input) string {
	cd := in.CaseData
	client := fmt.Sprintf("%s, %s, %s, %s, %s %s, residente e domiciliado(a) em %s",
		orPlaceholder(strings.ToUpper(cd.ClientName), "[NOME DO CLIENTE]"),
		orPlaceholder(cd.ClientNationality, "[nacionalidade]"),
		orPlaceholder(cd.ClientMaritalState, "[estado civil]"),
		orPlaceholder(cd.ClientProfession, "[profissão]"),
		QualificationMark,
		orPlaceholder(cd.ClientDocument, "[CPF/CNPJ]"),
		orPlaceholder(cd.ClientAddress, "[endereço completo]"),
	)
	opposing := fmt.Sprintf("%s, %s %s, com endereço em %s",
		orPlaceholder(strings.ToUpper(cd.OpposingParty), "[NOME DA PARTE CONTRÁRIA]"),
		QualificationMark,
		orPlaceholder(cd.OpposingDocument, "[CPF/CNPJ]"),
		orPlaceholder(cd.OpposingAddress, "[endereço da parte contrária]"),
	)
	action := orPlaceholder(strings.ToUpper(cd.ActionName), "[NOME DA AÇÃO]")
	switch in.DocumentType {
	case stages.DocContestacao:
		return fmt.Sprintf("%s, por seu advogado que esta subscreve, vem, respeitosamente, à presença de Vossa Excelência, nos autos da %s movida por %s, apresentar\n\nCONTESTAÇÃO\n\npelos fatos e fundamentos a seguir expostos.", client, action, opposing)
	case stages.DocRecurso:
		return fmt.Sprintf("%s, por seu advogado que esta subscreve, vem, respeitosamente, à presença de Vossa Excelência, nos autos da %s em que contende com %s, interpor\n\nRECURSO\n\npelas razões a seguir expostas.", client, action, opposing)
	case stages.DocParecer:
		return fmt.Sprintf("PARECER JURÍDICO\n\nConsulente: %s.\n\nInteressado: %s.\n\nAssunto: %s.", client, opposing, action)
	case stages.DocNotificacao:
		return fmt.Sprintf("NOTIFICAÇÃO EXTRAJUDICIAL\n\nNotificante: %s.\n\nNotificado(a): %s.", client, opposing)
	default:
		return fmt.Sprintf("%s, por seu advogado que esta subscreve, vem, respeitosamente, à presença de Vossa Excelência, propor a presente\n\n%s\n\nem face de %s, pelos fatos e fundamentos a seguir expostos.", client, action, opposing)
	}
}

type datedFact struct {
	fact   Fact
	when   time.Time
	parsed bool
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortChronology orders facts ascending by date. Entries whose date cannot be
// parsed keep their relative order after every dated entry.
func SortChronology(facts []Fact) []Fact {
	items := make([]datedFact, 0, len(facts))
	for _, f := range facts {
		t, ok := parseDate(f.Date)
		items = append(items, datedFact{fact: f, when: t, parsed: ok})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].parsed != items[j].parsed {
			return items[i].parsed
		}
		if !items[i].parsed {
			return false
		}
		return items[i].when.Before(items[j].when)
	})
	out := make([]Fact, 0, len(items))
	for _, it := range items {
		out = append(out, it.fact)
	}
	return out
}

func formatDate(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format("02/01/2006")
	}
	return orPlaceholder(s, "[data]")
}

func renderFacts(in Input) string {
	var b strings.Builder
	b.WriteString(HeadingFacts)
	var chronology []Fact
	var uncontested []string
	if in.FactsAnalysis != nil {
		chronology = in.FactsAnalysis.Chronology
		for _, f := range in.FactsAnalysis.Uncontested {
			if f != "" {
				uncontested = append(uncontested, f)
			}
		}
	}
	if len(chronology) == 0 {
		b.WriteString("\n\n" + FactsPlaceholder)
	}
	for _, f := range SortChronology(chronology) {
		desc := strings.TrimSuffix(orPlaceholder(f.Description, "[descrição do fato]"), ".")
		fmt.Fprintf(&b, "\n\nEm %s, %s.", formatDate(f.Date), desc)
	}
	if len(uncontested) > 0 {
		fmt.Fprintf(&b, "\n\nSão fatos incontroversos: %s.", strings.Join(uncontested, "; "))
	}
	return b.String()
}

// Letter returns the list marker for a zero-based index: a..z, then aa, ab...
func Letter(i int) string {
	if i < 0 {
		return ""
	}
	var out []byte
	for {
		out = append([]byte{byte('a' + i%26)}, out...)
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return string(out)
}

func renderLegalBasis(in Input) string {
	var b strings.Builder
	b.WriteString(HeadingLegalBasis)
	thesis := ""
	if in.StrategyData != nil {
		thesis = strings.TrimSuffix(strings.TrimSpace(in.StrategyData.MainThesis), ".")
	}
	if thesis == "" {
		b.WriteString("\n\n" + ThesisPlaceholder)
	} else {
		fmt.Fprintf(&b, "\n\nA pretensão fundamenta-se na seguinte tese jurídica: %s.", thesis)
	}
	for i, objective := range in.objectives() {
		fmt.Fprintf(&b, "\n\n%s) %s\n\n%s\n\n%s", Letter(i), objective, DevelopPlaceholder, CitePlaceholder)
	}
	if contested := in.contested(); len(contested) > 0 {
		b.WriteString("\n\nDos pontos controvertidos:")
		for i, fact := range contested {
			fmt.Fprintf(&b, "\n\n%d. [Esclarecer e comprovar: %s]", i+1, fact)
		}
	}
	return b.String()
}

func renderRequests(in Input) string {
	var b strings.Builder
	b.WriteString(HeadingRequests)
	b.WriteString("\n\nAnte o exposto, requer:")
	fmt.Fprintf(&b, "\n\na) %s", CitationRequest)
	objectives := in.objectives()
	if len(objectives) == 0 {
		fmt.Fprintf(&b, "\n\n%s) %s;", Letter(1), MainRequestPH)
		fmt.Fprintf(&b, "\n\n%s) %s;", Letter(2), AlternativeRequest)
	}
	for i, objective := range objectives {
		// a) is the citation request, so objective i takes Letter(i+1) whatever
		// the legal-basis topics ran to.
		fmt.Fprintf(&b, "\n\n%s) a procedência do pedido quanto a: %s;", Letter(i+1), strings.TrimSuffix(objective, "."))
	}
	b.WriteString("\n\n" + CostsRequest)
	b.WriteString("\n\n" + EvidenceRequest)
	return b.String()
}

func signature(cd CaseData) string {
	place := fmt.Sprintf("%s, %s.", orPlaceholder(cd.City, "[Local]"), orPlaceholder(cd.SigningDate, "[data]"))
	lawyer := orPlaceholder(cd.LawyerName, "[Nome do Advogado]")
	oab := orPlaceholder(cd.LawyerOAB, "[UF] [número]")
	return fmt.Sprintf("%s\n\n%s\nOAB/%s", place, lawyer, oab)
}

func renderConclusion(in Input) string {
	cd := in.CaseData
	switch {
	case stages.IsJudicial(in.DocumentType):
		value := "R$ [valor]"
		if cd.CaseValue != nil {
			value = FormatBRL(*cd.CaseValue)
		}
		return fmt.Sprintf("%s %s.\n\nNestes termos,\n%s\n\n%s", CaseValuePrefix, value, DeferralClosing, signature(cd))
	case in.DocumentType == stages.DocParecer:
		return OpinionClosing + "\n\n" + signature(cd)
	default:
		return ""
	}
}

// FormatBRL renders an amount as Brazilian currency, e.g. R$ 1.234,50.
func FormatBRL(v float64) string {
	cents := int64(math.Round(math.Abs(v) * 100))
	whole := cents / 100
	frac := cents % 100
	digits := fmt.Sprintf("%d", whole)
	var grouped []byte
	for i, c := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, c)
	}
	sign := ""
	if v < 0 && cents != 0 {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped, frac)
}
