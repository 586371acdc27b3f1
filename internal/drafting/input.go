package drafting

// CaseData is the structured case record a draft is rendered from. Every
// field is optional; missing values become bracketed placeholders.
type CaseData struct {
	Forum              string   `json:"forum,omitempty" yaml:"forum"`
	ActionName         string   `json:"action_name,omitempty" yaml:"action_name"`
	ClientName         string   `json:"client_name,omitempty" yaml:"client_name"`
	ClientNationality  string   `json:"client_nationality,omitempty" yaml:"client_nationality"`
	ClientMaritalState string   `json:"client_marital_status,omitempty" yaml:"client_marital_status"`
	ClientProfession   string   `json:"client_profession,omitempty" yaml:"client_profession"`
	ClientDocument     string   `json:"client_document,omitempty" yaml:"client_document"`
	ClientAddress      string   `json:"client_address,omitempty" yaml:"client_address"`
	OpposingParty      string   `json:"opposing_party,omitempty" yaml:"opposing_party"`
	OpposingDocument   string   `json:"opposing_document,omitempty" yaml:"opposing_document"`
	OpposingAddress    string   `json:"opposing_address,omitempty" yaml:"opposing_address"`
	CaseValue          *float64 `json:"case_value,omitempty" yaml:"case_value"`
	City               string   `json:"city,omitempty" yaml:"city"`
	SigningDate        string   `json:"signing_date,omitempty" yaml:"signing_date"`
	LawyerName         string   `json:"lawyer_name,omitempty" yaml:"lawyer_name"`
	LawyerOAB          string   `json:"lawyer_oab,omitempty" yaml:"lawyer_oab"`
}

// Fact is one dated entry of the case chronology.
type Fact struct {
	Date        string `json:"data" yaml:"data"`
	Description string `json:"descricao" yaml:"descricao"`
}

// FactsAnalysis is the structured output of the facts analysis agent.
type FactsAnalysis struct {
	Chronology  []Fact   `json:"cronologia,omitempty" yaml:"cronologia"`
	Uncontested []string `json:"fatos_incontroversos,omitempty" yaml:"fatos_incontroversos"`
	Contested   []string `json:"fatos_controvertidos,omitempty" yaml:"fatos_controvertidos"`
}

// StrategyData is the structured output of the strategy agent.
type StrategyData struct {
	MainThesis string   `json:"tese_principal,omitempty" yaml:"tese_principal"`
	Objectives []string `json:"objetivos,omitempty" yaml:"objetivos"`
}

// Input bundles everything a render needs.
type Input struct {
	DocumentType  string         `json:"document_type" yaml:"document_type"`
	CaseData      CaseData       `json:"case_data" yaml:"case_data"`
	FactsAnalysis *FactsAnalysis `json:"facts_analysis,omitempty" yaml:"facts_analysis"`
	StrategyData  *StrategyData  `json:"strategy_data,omitempty" yaml:"strategy_data"`
}

// Draft is the rendered document before it is persisted.
type Draft struct {
	DocumentType string   `json:"document_type"`
	Title        string   `json:"title"`
	Sections     []string `json:"sections"`
	Content      string   `json:"content"`
}

func (in Input) objectives() []string {
	if in.StrategyData == nil {
		return nil
	}
	var out []string
	for _, o := range in.StrategyData.Objectives {
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (in Input) contested() []string {
	if in.FactsAnalysis == nil {
		return nil
	}
	var out []string
	for _, f := range in.FactsAnalysis.Contested {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
