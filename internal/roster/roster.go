// Named agent configurations. A roster is a YAML file declaring the
// worker agents of one orchestration run: ids, roles, focus areas,
// branches, and the dependency edges between them. Rosters are static
// data; the session store copies them verbatim at session creation.

package roster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound indicates the named configuration has no file on disk.
var ErrConfigNotFound = errors.New("roster: configuration not found")

// AgentDefinition describes one worker agent. Id 0 is reserved for the
// orchestrator and never appears in a roster.
type AgentDefinition struct {
	ID          int      `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Role        string   `yaml:"role" json:"role"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Focus       []string `yaml:"focus,omitempty" json:"focus,omitempty"`
	Branch      string   `yaml:"branch,omitempty" json:"branch,omitempty"`
	DependsOn   []int    `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`
	Blocks      []int    `yaml:"blocks,omitempty" json:"blocks,omitempty"`
}

// Roster is one named configuration's full agent list.
type Roster struct {
	Name   string            `yaml:"name,omitempty"`
	Agents []AgentDefinition `yaml:"agents"`
}

// Load reads a roster from an explicit path. Missing files map to
// ErrConfigNotFound so callers can distinguish absence from corruption.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("roster: parse %s: %w", path, err)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	r.Normalize()
	return &r, nil
}

// LoadNamed reads the configuration called name from configsDir.
func LoadNamed(configsDir, name string) (*Roster, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty configuration name", ErrConfigNotFound)
	}
	return Load(filepath.Join(configsDir, name+".yaml"))
}

// Save writes the roster to path, creating parent directories as needed.
// The session store uses this to snapshot the configuration a session was
// created from.
func (r *Roster) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("roster: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("roster: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("roster: write %s: %w", path, err)
	}
	return nil
}

// Normalize trims whitespace, drops empty focus entries, and orders
// agents by id.
func (r *Roster) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	for i := range r.Agents {
		a := &r.Agents[i]
		a.Name = strings.TrimSpace(a.Name)
		a.Role = strings.TrimSpace(a.Role)
		a.Description = strings.TrimSpace(a.Description)
		a.Branch = strings.TrimSpace(a.Branch)
		focus := a.Focus[:0]
		for _, f := range a.Focus {
			if trimmed := strings.TrimSpace(f); trimmed != "" {
				focus = append(focus, trimmed)
			}
		}
		a.Focus = focus
	}
	sort.SliceStable(r.Agents, func(i, j int) bool {
		return r.Agents[i].ID < r.Agents[j].ID
	})
}

// Validate checks structural contract expectations: ids are exactly
// 1..N, names are unique ignoring case, and every dependency or block
// reference points at a declared agent. Returns one error per violation.
func (r *Roster) Validate() []error {
	var errs []error
	if len(r.Agents) == 0 {
		return []error{fmt.Errorf("roster declares no agents")}
	}

	ids := map[int]struct{}{}
	names := map[string]int{}
	for index, a := range r.Agents {
		if a.ID < 1 {
			errs = append(errs, fmt.Errorf("agents[%d]: id %d is reserved or invalid (must be >= 1)", index, a.ID))
		}
		if _, exists := ids[a.ID]; exists {
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate id %d", index, a.ID))
		}
		ids[a.ID] = struct{}{}
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: name is required", index))
		} else {
			key := strings.ToLower(a.Name)
			if prior, exists := names[key]; exists {
				errs = append(errs, fmt.Errorf("agents[%d]: name %q duplicates agent %d", index, a.Name, prior))
			} else {
				names[key] = a.ID
			}
		}
		if a.Role == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: role is required", index))
		}
	}

	for i := 1; i <= len(r.Agents); i++ {
		if _, ok := ids[i]; !ok {
			errs = append(errs, fmt.Errorf("agent ids must cover 1..%d exactly; %d is missing", len(r.Agents), i))
		}
	}

	for index, a := range r.Agents {
		for _, dep := range a.DependsOn {
			if _, ok := ids[dep]; !ok {
				errs = append(errs, fmt.Errorf("agents[%d]: depends_on references unknown agent %d", index, dep))
			}
			if dep == a.ID {
				errs = append(errs, fmt.Errorf("agents[%d]: depends_on references itself", index))
			}
		}
		for _, blocked := range a.Blocks {
			if _, ok := ids[blocked]; !ok {
				errs = append(errs, fmt.Errorf("agents[%d]: blocks references unknown agent %d", index, blocked))
			}
		}
	}

	return errs
}

// Report bundles a validation pass for CLI output.
type Report struct {
	Name   string
	Path   string
	Agents int
	Errors []error
}

// IsValid reports whether validation found no violations.
func (r Report) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidateFile loads and validates a roster file in one step.
func ValidateFile(path string) (Report, error) {
	r, err := Load(path)
	if err != nil {
		return Report{Path: path}, err
	}
	return Report{
		Name:   r.Name,
		Path:   path,
		Agents: len(r.Agents),
		Errors: r.Validate(),
	}, nil
}

// FindByID returns the agent with the given id.
func (r *Roster) FindByID(id int) (AgentDefinition, bool) {
	for _, a := range r.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentDefinition{}, false
}

// Resolve maps a recipient identifier to a declared agent. Identifiers
// are either a literal numeric id or an agent name matched without
// regard to case.
func (r *Roster) Resolve(identifier string) (AgentDefinition, bool) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return AgentDefinition{}, false
	}
	if id, err := strconv.Atoi(trimmed); err == nil {
		return r.FindByID(id)
	}
	target := strings.ToLower(trimmed)
	for _, a := range r.Agents {
		if strings.ToLower(a.Name) == target {
			return a, true
		}
	}
	return AgentDefinition{}, false
}
