package stages

// Document types.
const (
	DocPeticaoInicial = "peticao-inicial"
	DocContestacao    = "contestacao"
	DocRecurso        = "recurso"
	DocParecer        = "parecer-juridico"
	DocNotificacao    = "notificacao-extrajudicial"
)

// Section tags.
const (
	SectionHeader        = "cabecalho"
	SectionQualification = "qualificacao"
	SectionFacts         = "fatos"
	SectionLegalBasis    = "direito"
	SectionRequests      = "pedidos"
	SectionConclusion    = "conclusao"
)

type docStructure struct {
	docType  string
	title    string
	sections []string
}

var structures = [...]docStructure{
	{DocPeticaoInicial, "Petição Inicial", []string{SectionHeader, SectionQualification, SectionFacts, SectionLegalBasis, SectionRequests, SectionConclusion}},
	{DocContestacao, "Contestação", []string{SectionHeader, SectionQualification, SectionFacts, SectionLegalBasis, SectionRequests, SectionConclusion}},
	{DocRecurso, "Recurso", []string{SectionHeader, SectionQualification, SectionFacts, SectionLegalBasis, SectionRequests, SectionConclusion}},
	{DocParecer, "Parecer Jurídico", []string{SectionQualification, SectionFacts, SectionLegalBasis, SectionConclusion}},
	{DocNotificacao, "Notificação Extrajudicial", []string{SectionQualification, SectionFacts, SectionRequests}},
}

// Structure returns the ordered section tags of a document type.
func Structure(docType string) ([]string, bool) {
	for _, s := range structures {
		if s.docType == docType {
			return append([]string(nil), s.sections...), true
		}
	}
	return nil, false
}

// DocumentTitle returns the display title of a document type, or the type
// itself when unknown.
func DocumentTitle(docType string) string {
	for _, s := range structures {
		if s.docType == docType {
			return s.title
		}
	}
	return docType
}

// DocumentTypes lists the known document types.
func DocumentTypes() []string {
	out := make([]string, 0, len(structures))
	for _, s := range structures {
		out = append(out, s.docType)
	}
	return out
}

// AllSections is the full generator pipeline order.
func AllSections() []string {
	return []string{SectionHeader, SectionQualification, SectionFacts, SectionLegalBasis, SectionRequests, SectionConclusion}
}

// IsJudicial reports whether a document type is filed in court and therefore
// carries a case value and a deferral closing.
func IsJudicial(docType string) bool {
	switch docType {
	case DocPeticaoInicial, DocContestacao, DocRecurso:
		return true
	}
	return false
}
