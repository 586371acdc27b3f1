// Package stages holds the fixed case workflow: seven stages in order, the
// agent recommended for each and the artifacts a stage needs before it is
// considered complete. It also carries the document structure table used to
// badge drafted documents.
package stages

const (
	Reception = "reception"
	Planning  = "planning"
	Analysis  = "analysis"
	Research  = "research"
	Drafting  = "drafting"
	Review    = "review"
	Delivery  = "delivery"
)

// Artifact keys used as completeness evidence.
const (
	ArtifactCaseRegistered     = "case.registered"
	ArtifactClientIdentified   = "client.identified"
	ArtifactDocumentsReceived  = "documents.received"
	ArtifactObjectivesDefined  = "objectives.defined"
	ArtifactStrategyOutlined   = "strategy.outlined"
	ArtifactFactsAnalyzed      = "facts.analyzed"
	ArtifactLegalBasisResearch = "legal_basis.researched"
	ArtifactDraftProduced      = "draft.produced"
	ArtifactDraftVerified      = "draft.verified"
	ArtifactClientNotified     = "client.notified"
	ArtifactDocumentFiled      = "document.filed"
)

// Config describes one stage.
type Config struct {
	StageName         string   `json:"stage_name" yaml:"stage_name"`
	DisplayName       string   `json:"display_name" yaml:"display_name"`
	StageNumber       int      `json:"stage_number" yaml:"stage_number"`
	RecommendedAgent  string   `json:"recommended_agent" yaml:"recommended_agent"`
	RequiredArtifacts []string `json:"required_artifacts" yaml:"required_artifacts"`
}

var registry = [...]Config{
	{
		StageName:         Reception,
		DisplayName:       "Recepção",
		StageNumber:       1,
		RecommendedAgent:  "triagem",
		RequiredArtifacts: []string{ArtifactCaseRegistered, ArtifactClientIdentified, ArtifactDocumentsReceived},
	},
	{
		StageName:         Planning,
		DisplayName:       "Planejamento",
		StageNumber:       2,
		RecommendedAgent:  "estrategista",
		RequiredArtifacts: []string{ArtifactObjectivesDefined, ArtifactStrategyOutlined},
	},
	{
		StageName:         Analysis,
		DisplayName:       "Análise",
		StageNumber:       3,
		RecommendedAgent:  "analista",
		RequiredArtifacts: []string{ArtifactFactsAnalyzed},
	},
	{
		StageName:         Research,
		DisplayName:       "Pesquisa",
		StageNumber:       4,
		RecommendedAgent:  "pesquisador",
		RequiredArtifacts: []string{ArtifactLegalBasisResearch},
	},
	{
		StageName:         Drafting,
		DisplayName:       "Redação",
		StageNumber:       5,
		RecommendedAgent:  "redator",
		RequiredArtifacts: []string{ArtifactDraftProduced},
	},
	{
		StageName:         Review,
		DisplayName:       "Revisão",
		StageNumber:       6,
		RecommendedAgent:  "revisor",
		RequiredArtifacts: []string{ArtifactDraftVerified},
	},
	{
		StageName:         Delivery,
		DisplayName:       "Entrega",
		StageNumber:       7,
		RecommendedAgent:  "comunicador",
		RequiredArtifacts: []string{ArtifactClientNotified, ArtifactDocumentFiled},
	},
}

// Count is the number of stages in the workflow.
const Count = len(registry)

func clone(c Config) Config {
	c.RequiredArtifacts = append([]string(nil), c.RequiredArtifacts...)
	return c
}

// Lookup returns the config for a stage name.
func Lookup(name string) (Config, bool) {
	for _, c := range registry {
		if c.StageName == name {
			return clone(c), true
		}
	}
	return Config{}, false
}

// ByNumber returns the config for a stage number (1-based).
func ByNumber(n int) (Config, bool) {
	if n < 1 || n > Count {
		return Config{}, false
	}
	return clone(registry[n-1]), true
}

// Ordered returns every stage in workflow order. Each call returns a new slice.
func Ordered() []Config {
	out := make([]Config, 0, Count)
	for _, c := range registry {
		out = append(out, clone(c))
	}
	return out
}

// First returns the entry stage of every workflow.
func First() Config {
	return clone(registry[0])
}

// Next returns the stage after name; false when name is the last stage or unknown.
func Next(name string) (Config, bool) {
	c, ok := Lookup(name)
	if !ok {
		return Config{}, false
	}
	return ByNumber(c.StageNumber + 1)
}

// IsLast reports whether name is the final stage.
func IsLast(name string) bool {
	c, ok := Lookup(name)
	return ok && c.StageNumber == Count
}

// Names lists stage names in order.
func Names() []string {
	out := make([]string, 0, Count)
	for _, c := range registry {
		out = append(out, c.StageName)
	}
	return out
}

// IsKnown reports whether name is a registered stage.
func IsKnown(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Agents lists the recommended agent of every stage in order.
func Agents() []string {
	out := make([]string, 0, Count)
	for _, c := range registry {
		out = append(out, c.RecommendedAgent)
	}
	return out
}
