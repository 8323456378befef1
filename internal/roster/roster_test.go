package roster

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleRosterYAML = `
agents:
  - id: 2
    name: Addons
    role: Platform Addons
    focus:
      - charts/
      - addons/
    depends_on: [1]
  - id: 1
    name: Infra
    role: Core Infrastructure
    branch: agent-1-infra
    blocks: [2]
`

func writeRoster(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNamedNormalizesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeRoster(t, dir, "platform", sampleRosterYAML)

	r, err := LoadNamed(dir, "platform")
	if err != nil {
		t.Fatalf("LoadNamed returned error: %v", err)
	}
	if r.Name != "platform" {
		t.Fatalf("expected name from filename, got %q", r.Name)
	}
	if len(r.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(r.Agents))
	}
	if r.Agents[0].ID != 1 || r.Agents[1].ID != 2 {
		t.Fatalf("agents not ordered by id: %+v", r.Agents)
	}
	if errs := r.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid roster, got %v", errs)
	}
}

func TestLoadNamedMissingConfig(t *testing.T) {
	_, err := LoadNamed(t.TempDir(), "nope")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestValidateCatchesViolations(t *testing.T) {
	r := &Roster{Agents: []AgentDefinition{
		{ID: 1, Name: "Infra", Role: "Core"},
		{ID: 3, Name: "infra", Role: "Addons", DependsOn: []int{9, 3}},
	}}
	r.Normalize()
	errs := r.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation errors")
	}
	joined := make([]string, len(errs))
	for i, e := range errs {
		joined[i] = e.Error()
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"duplicates agent", "2 is missing", "unknown agent 9", "references itself"} {
		if !strings.Contains(all, want) {
			t.Fatalf("expected violation containing %q in:\n%s", want, all)
		}
	}
}

func TestResolveByIDAndName(t *testing.T) {
	r := &Roster{Agents: []AgentDefinition{
		{ID: 1, Name: "Infra", Role: "Core"},
		{ID: 2, Name: "Security Review", Role: "Security"},
	}}

	if a, ok := r.Resolve("2"); !ok || a.Name != "Security Review" {
		t.Fatalf("numeric resolve failed: %+v ok=%v", a, ok)
	}
	if a, ok := r.Resolve("security review"); !ok || a.ID != 2 {
		t.Fatalf("case-insensitive name resolve failed: %+v ok=%v", a, ok)
	}
	if _, ok := r.Resolve("PLAT"); ok {
		t.Fatal("expected unknown name to miss")
	}
	if _, ok := r.Resolve("7"); ok {
		t.Fatal("expected unknown id to miss")
	}
}

func TestValidateFileReport(t *testing.T) {
	dir := t.TempDir()
	path := writeRoster(t, dir, "bad", `
agents:
  - id: 1
    name: Solo
`)
	report, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile returned error: %v", err)
	}
	if report.IsValid() {
		t.Fatal("expected invalid report (missing role)")
	}
	if report.Agents != 1 {
		t.Fatalf("expected 1 agent counted, got %d", report.Agents)
	}
}
