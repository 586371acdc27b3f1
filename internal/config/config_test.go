package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("office-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Office.ID != "office-1" {
		t.Fatalf("office id %q", cfg.Office.ID)
	}
	if got := cfg.AlertPriority("agent_failure", "low"); got != "high" {
		t.Fatalf("agent_failure priority %q", got)
	}
	if perms := cfg.RolePermissions("owner"); len(perms) != 1 || perms[0] != "*" {
		t.Fatalf("owner perms %v", perms)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"missing office":  "office: {}\n",
		"bad priority":    "office: {id: x}\nworkflow:\n  alerts:\n    incomplete_stage: urgent\n",
		"unknown stage":   "office: {id: x}\nworkflow:\n  extra_artifacts:\n    archive: [a]\n",
		"unknown agent":   "office: {id: x}\nagents:\n  catalog:\n    robo: {}\n",
		"no owner role":   "office: {id: x}\nrbac:\n  roles:\n    lawyer: {permissions: [workflow.read]}\n",
		"webhook url":     "office: {id: x}\nnotifications:\n  webhooks:\n    - secret: s\n",
		"webhook min pri": "office: {id: x}\nnotifications:\n  webhooks:\n    - url: http://x\n      min_priority: max\n",
	}
	for name, raw := range cases {
		if _, err := FromYAML([]byte(raw)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRequiredArtifactsMergesExtras(t *testing.T) {
	cfg, err := FromYAML([]byte("office: {id: x}\nworkflow:\n  extra_artifacts:\n    drafting: [draft.produced, procuration.signed]\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := cfg.RequiredArtifacts("drafting")
	if strings.Join(got, ",") != "draft.produced,procuration.signed" {
		t.Fatalf("artifacts %v", got)
	}
	if cfg.RequiredArtifacts("nope") != nil {
		t.Fatalf("unknown stage should have no artifacts")
	}
	var nilCfg *Config
	if len(nilCfg.RequiredArtifacts("reception")) != 3 {
		t.Fatalf("nil config must fall back to registry")
	}
}

func TestAgentEnabled(t *testing.T) {
	cfg, err := FromYAML([]byte("office: {id: x}\nagents:\n  catalog:\n    pesquisador: {enabled: false}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AgentEnabled("pesquisador") {
		t.Fatalf("pesquisador should be disabled")
	}
	if !cfg.AgentEnabled("redator") {
		t.Fatalf("agents missing from catalog are enabled")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("expected nil config, got %v %v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lex.yml"), []byte(GenerateDefault("abc")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil || cfg.Office.ID != "abc" {
		t.Fatalf("load: %v %v", cfg, err)
	}
}
