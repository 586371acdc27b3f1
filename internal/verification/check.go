package verification

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

var (
	signatureRe   = regexp.MustCompile(`(?m)^\s*OAB/\S+`)
	caseValueRe   = regexp.MustCompile(`(?i)(dá-se à causa o valor|valor da causa)[^\n]*R\$`)
	statuteRe     = regexp.MustCompile(`(?i)\b(art\.?|artigo)\s*\d+|\blei\s+(n[ºo°.]*\s*)?\d|\b(CF|CPC|CC|CLT|CDC|CTN)\b|constitui[çc][ãa]o federal|c[óo]digo (civil|de processo civil|penal|de defesa do consumidor|tribut[áa]rio)`)
	precedentRe   = regexp.MustCompile(`(?i)\b(STF|STJ|TST|TJ[A-Z]{2}|TRF\d?)\b|s[úu]mula\s+(vinculante\s+)?(n[ºo°.]*\s*)?\d+|\b(REsp|AgRg|AgInt|RE|HC|ADI)\s+n?[ºo°.]*\s*\d|\bRel\.`)
	placeholderRe = regexp.MustCompile(`\[[^\]\n]+\]`)
	requestLineRe = regexp.MustCompile(`(?m)^([a-z]+)\) (.+)$`)
)

// Report is the outcome of a rule-based check.
type Report struct {
	Criteria        domain.Criteria
	Recommendations []string
}

// Passed reports the informal pass signal: formal requirements met.
func (r Report) Passed() bool {
	return r.Criteria.FormalRequirements
}

type sectionSpan struct {
	tag   string
	index int
}

func sectionIndex(content, docType, tag string) int {
	switch tag {
	case stages.SectionHeader:
		return strings.Index(content, drafting.HeaderPrefix)
	case stages.SectionQualification:
		return strings.Index(content, drafting.QualificationMark)
	case stages.SectionFacts:
		return strings.Index(content, drafting.HeadingFacts)
	case stages.SectionLegalBasis:
		return strings.Index(content, drafting.HeadingLegalBasis)
	case stages.SectionRequests:
		return strings.Index(content, drafting.HeadingRequests)
	case stages.SectionConclusion:
		if docType == stages.DocParecer {
			return strings.Index(content, "É o parecer")
		}
		if stages.IsJudicial(docType) {
			return strings.Index(content, drafting.DeferralClosing)
		}
		if loc := signatureRe.FindStringIndex(content); loc != nil {
			return loc[0]
		}
	}
	return -1
}

var sectionNames = map[string]string{
	stages.SectionHeader:        "endereçamento (cabeçalho)",
	stages.SectionQualification: "qualificação das partes",
	stages.SectionFacts:         "dos fatos",
	stages.SectionLegalBasis:    "do direito",
	stages.SectionRequests:      "dos pedidos",
	stages.SectionConclusion:    "fecho e conclusão",
}

// section returns the text of the section starting at heading up to the next
// known heading.
func section(content, heading string) string {
	start := strings.Index(content, heading)
	if start < 0 {
		return ""
	}
	rest := content[start+len(heading):]
	end := len(rest)
	for _, h := range []string{drafting.HeadingFacts, drafting.HeadingLegalBasis, drafting.HeadingRequests, drafting.CaseValuePrefix, drafting.OpinionClosing} {
		if h == heading {
			continue
		}
		if i := strings.Index(rest, h); i >= 0 && i < end {
			end = i
		}
	}
	return rest[:end]
}

// Check evaluates a drafted document against the fixed criteria set. It is a
// pure function of the document.
func Check(doc domain.DraftedDocument) Report {
	var rep Report
	content := doc.Content
	required, ok := stages.Structure(doc.DocumentType)
	if !ok {
		required = doc.Sections
	}
	present := map[string]int{}
	for _, tag := range required {
		if i := sectionIndex(content, doc.DocumentType, tag); i >= 0 {
			present[tag] = i
		}
	}
	has := func(tag string) bool {
		_, ok := present[tag]
		return ok
	}
	requires := func(tag string) bool {
		for _, t := range required {
			if t == tag {
				return true
			}
		}
		return false
	}

	// Formal requirements.
	formal := true
	if strings.TrimSpace(content) == "" {
		formal = false
		rep.Recommendations = append(rep.Recommendations, "O documento está vazio; gere uma nova minuta antes da revisão.")
	}
	for _, tag := range required {
		if !has(tag) {
			formal = false
			rep.Recommendations = append(rep.Recommendations, fmt.Sprintf("Inclua a seção obrigatória \"%s\".", sectionNames[tag]))
		}
	}
	// Only documents with a closing carry the signature block.
	if requires(stages.SectionConclusion) && !signatureRe.MatchString(content) {
		formal = false
		rep.Recommendations = append(rep.Recommendations, "Inclua o bloco de assinatura do advogado com o número de inscrição na OAB.")
	}
	if stages.IsJudicial(doc.DocumentType) && !caseValueRe.MatchString(content) {
		formal = false
		rep.Recommendations = append(rep.Recommendations, "Indique o valor da causa.")
	}
	rep.Criteria.FormalRequirements = formal

	// Legal compliance.
	legal := section(content, drafting.HeadingLegalBasis)
	switch {
	case legal == "":
		rep.Recommendations = append(rep.Recommendations, "Inclua a fundamentação jurídica (seção \"Do Direito\").")
	case !statuteRe.MatchString(legal):
		rep.Recommendations = append(rep.Recommendations, "Fundamente a tese com ao menos um dispositivo legal (artigo, lei ou código).")
	default:
		rep.Criteria.LegalCompliance = true
	}

	// Citations.
	switch {
	case strings.Contains(content, "[Citação"):
		rep.Recommendations = append(rep.Recommendations, "Substitua os marcadores de citação por referências legais, doutrinárias ou jurisprudenciais.")
	case !precedentRe.MatchString(content):
		rep.Recommendations = append(rep.Recommendations, "Inclua ao menos uma citação de jurisprudência ou doutrina que sustente a tese.")
	default:
		rep.Criteria.Citations = true
	}

	// Logical coherence.
	coherent := true
	if requires(stages.SectionFacts) && !has(stages.SectionFacts) {
		coherent = false
		rep.Recommendations = append(rep.Recommendations, "Narre os fatos antes de apresentar os fundamentos.")
	}
	if requires(stages.SectionRequests) && !has(stages.SectionRequests) {
		coherent = false
		rep.Recommendations = append(rep.Recommendations, "Conclua a peça com os pedidos decorrentes dos fundamentos.")
	}
	if strings.Contains(content, drafting.FactsPlaceholder) {
		coherent = false
		rep.Recommendations = append(rep.Recommendations, "Descreva os fatos do caso; a narrativa ainda está em branco.")
	}
	if strings.Contains(content, drafting.ThesisPlaceholder) {
		coherent = false
		rep.Recommendations = append(rep.Recommendations, "Defina a tese jurídica principal que liga os fatos aos pedidos.")
	}
	var spans []sectionSpan
	for _, tag := range required {
		if i, ok := present[tag]; ok {
			spans = append(spans, sectionSpan{tag: tag, index: i})
		}
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].index < spans[i-1].index {
			coherent = false
			rep.Recommendations = append(rep.Recommendations, fmt.Sprintf("Reordene as seções: \"%s\" deve vir depois de \"%s\".", sectionNames[spans[i].tag], sectionNames[spans[i-1].tag]))
			break
		}
	}
	rep.Criteria.LogicalCoherence = coherent

	// Alignment with objectives.
	if requires(stages.SectionRequests) {
		requests := section(content, drafting.HeadingRequests)
		substantive := 0
		for _, m := range requestLineRe.FindAllStringSubmatch(requests, -1) {
			text := m[2]
			if strings.Contains(text, "citação da parte ré") || placeholderRe.MatchString(text) {
				continue
			}
			substantive++
		}
		switch {
		case strings.Contains(requests, "[Pedido"):
			rep.Recommendations = append(rep.Recommendations, "Substitua os pedidos genéricos pelos pedidos ligados aos objetivos do cliente.")
		case substantive == 0:
			rep.Recommendations = append(rep.Recommendations, "Formule ao menos um pedido que atenda ao objetivo do cliente.")
		default:
			rep.Criteria.AlignmentWithObjectives = true
		}
	} else {
		if legal == "" || strings.Contains(legal, drafting.ThesisPlaceholder) {
			rep.Recommendations = append(rep.Recommendations, "Relacione a conclusão do documento à questão apresentada pelo cliente.")
		} else {
			rep.Criteria.AlignmentWithObjectives = true
		}
	}

	if n := len(placeholderRe.FindAllString(content, -1)); n > 0 {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf("Preencha os %d marcadores pendentes entre colchetes antes do protocolo.", n))
	}
	return rep
}
