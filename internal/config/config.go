package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

// Config models lex.yml.
type Config struct {
	Office struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"office"`
	Workflow struct {
		Alerts         AlertPriorities     `yaml:"alerts"`
		ExtraArtifacts map[string][]string `yaml:"extra_artifacts"`
	} `yaml:"workflow"`
	Agents struct {
		Catalog map[string]AgentConfig `yaml:"catalog"`
	} `yaml:"agents"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Notifications struct {
		Webhooks []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notifications"`
}

// AlertPriorities sets the priority used for each kind of engine-raised alert.
type AlertPriorities struct {
	IncompleteStage     string `yaml:"incomplete_stage"`
	AgentFailure        string `yaml:"agent_failure"`
	PersistenceFailure  string `yaml:"persistence_failure"`
	VerificationFailure string `yaml:"verification_failure"`
}

type AgentConfig struct {
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Categories     []string `yaml:"categories"`
	MinPriority    string   `yaml:"min_priority"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with lex config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Office.ID) == "" {
		return fmt.Errorf("config.office.id is required")
	}
	a := c.Workflow.Alerts
	for name, p := range map[string]string{
		"incomplete_stage":     a.IncompleteStage,
		"agent_failure":        a.AgentFailure,
		"persistence_failure":  a.PersistenceFailure,
		"verification_failure": a.VerificationFailure,
	} {
		if p != "" && !domain.IsValidPriority(p) {
			return fmt.Errorf("config.workflow.alerts.%s has invalid priority %q", name, p)
		}
	}
	for stage, arts := range c.Workflow.ExtraArtifacts {
		if !stages.IsKnown(stage) {
			return fmt.Errorf("config.workflow.extra_artifacts references unknown stage %s", stage)
		}
		for _, art := range arts {
			if strings.TrimSpace(art) == "" {
				return fmt.Errorf("stage %s has empty extra artifact", stage)
			}
		}
	}
	known := map[string]bool{}
	for _, agent := range stages.Agents() {
		known[agent] = true
	}
	for kind := range c.Agents.Catalog {
		if !known[kind] {
			return fmt.Errorf("config.agents.catalog references unknown agent %s", kind)
		}
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["owner"]; !ok {
			return fmt.Errorf("config.rbac.roles must include owner")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Notifications.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url is required", i)
		}
		if hook.MinPriority != "" && !domain.IsValidPriority(hook.MinPriority) {
			return fmt.Errorf("config.notifications.webhooks[%d].min_priority is invalid", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.notifications.webhooks[%d].timeout_seconds must be >= 0", i)
		}
	}
	return nil
}

// AlertPriority returns the configured priority for an alert kind, or fallback.
func (c *Config) AlertPriority(kind, fallback string) string {
	if c == nil {
		return fallback
	}
	var p string
	switch kind {
	case "incomplete_stage":
		p = c.Workflow.Alerts.IncompleteStage
	case "agent_failure":
		p = c.Workflow.Alerts.AgentFailure
	case "persistence_failure":
		p = c.Workflow.Alerts.PersistenceFailure
	case "verification_failure":
		p = c.Workflow.Alerts.VerificationFailure
	}
	if p == "" {
		return fallback
	}
	return p
}

// RequiredArtifacts returns the stage's registry checklist plus any
// configured extras, without duplicates.
func (c *Config) RequiredArtifacts(stage string) []string {
	cfg, ok := stages.Lookup(stage)
	if !ok {
		return nil
	}
	out := cfg.RequiredArtifacts
	if c == nil {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, a := range out {
		seen[a] = true
	}
	for _, a := range c.Workflow.ExtraArtifacts[stage] {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// AgentEnabled reports whether an agent kind may run. Agents missing from the
// catalog are enabled.
func (c *Config) AgentEnabled(kind string) bool {
	if c == nil {
		return true
	}
	a, ok := c.Agents.Catalog[kind]
	if !ok || a.Enabled == nil {
		return true
	}
	return *a.Enabled
}

// RolePermissions returns the permissions granted to role.
func (c *Config) RolePermissions(role string) []string {
	if c == nil {
		return nil
	}
	return c.RBAC.Roles[role].Permissions
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "lex.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(officeID string) string {
	return fmt.Sprintf(defaultTemplate, officeID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for an office.
func Default(officeID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(officeID))).Decode(&cfg)
	cfg.Office.ID = officeID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `office:
  id: %s
  name: "Escritório"

workflow:
  alerts:
    incomplete_stage: medium
    agent_failure: high
    persistence_failure: high
    verification_failure: medium
  extra_artifacts: {}

agents:
  catalog:
    triagem:
      description: "Recebe o caso e identifica cliente e documentos"
    estrategista:
      description: "Define objetivos e estratégia"
    analista:
      description: "Analisa os fatos"
    pesquisador:
      description: "Pesquisa fundamentos legais"
    redator:
      description: "Redige a minuta"
    revisor:
      description: "Verifica a minuta"
    comunicador:
      description: "Comunica o cliente e protocola"

rbac:
  roles:
    owner:
      description: "Sócio responsável"
      permissions: ["*"]
    lawyer:
      description: "Advogado(a)"
      permissions:
        - workflow.read
        - workflow.write
        - documents.write
        - verifications.write
        - alerts.write
        - agents.run
    assistant:
      description: "Assistente"
      permissions:
        - workflow.read
        - alerts.write

notifications:
  webhooks: []
`
