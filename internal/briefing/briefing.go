// Instruction-document generation. Each agent gets one briefing file
// rendered at session initialization: a role-specific template from
// .conclave/templates/ when one exists, otherwise a generic document
// synthesized from the agent's roster entry. Substitutions go through
// a typed context so the set of template keys is explicit and testable.

package briefing

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/mtavish/conclave/internal/roster"
)

// Context carries every substitution a briefing template may use.
type Context struct {
	AgentID     int
	AgentName   string
	Role        string
	Description string
	Focus       []string
	DependsOn   []string
	Blocks      []string
	SessionName string
	RepoPath    string
	WorkDir     string
	Briefing    string
	Mailbox     string
	Response    string
	State       string
}

// NewContext builds the template context for one agent. Dependency and
// block ids are resolved to display names against the roster so the
// rendered document reads naturally.
func NewContext(def roster.AgentDefinition, r *roster.Roster) Context {
	ctx := Context{
		AgentID:     def.ID,
		AgentName:   def.Name,
		Role:        def.Role,
		Description: def.Description,
		Focus:       append([]string{}, def.Focus...),
	}
	for _, id := range def.DependsOn {
		ctx.DependsOn = append(ctx.DependsOn, agentLabel(r, id))
	}
	for _, id := range def.Blocks {
		ctx.Blocks = append(ctx.Blocks, agentLabel(r, id))
	}
	return ctx
}

// TemplatePath returns where a role-specific template would live.
func TemplatePath(templatesDir, role string) string {
	return filepath.Join(templatesDir, Slug(role)+".md")
}

// Render produces the briefing document for one agent. A readable
// role template wins; everything else falls through to the generic
// document. Template parse or execution failures are reported, not
// silently swallowed; a broken template is a configuration error.
func Render(templatesDir string, ctx Context) ([]byte, error) {
	path := TemplatePath(templatesDir, ctx.Role)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return renderDefault(ctx)
		}
		return nil, fmt.Errorf("briefing: read template %s: %w", path, err)
	}
	tmpl, err := template.New(filepath.Base(path)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("briefing: parse template %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("briefing: render template %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

var defaultTemplate = template.Must(template.New("briefing").Parse(`# {{.AgentName}} — {{.Role}}

You are agent {{.AgentID}} ({{.AgentName}}) in session {{.SessionName}}.
{{- if .Description}}

{{.Description}}
{{- end}}

## Working directory

{{.WorkDir}}
{{- if .Focus}}

## Focus areas
{{range .Focus}}
- {{.}}
{{- end}}
{{- end}}
{{- if .DependsOn}}

## You depend on
{{range .DependsOn}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Blocks}}

## Waiting on you
{{range .Blocks}}
- {{.}}
{{- end}}
{{- end}}

## Coordination

- Check your mailbox regularly: {{.Mailbox}}
- Your state record: {{.State}}
- When your task is done, mark it complete; your summary is stored at {{.Response}}

Use the coordination tools to check for queries, message other agents,
update your status, and mark your task complete. Repository under work:
{{.RepoPath}}
`))

func renderDefault(ctx Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := defaultTemplate.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("briefing: render default document: %w", err)
	}
	return buf.Bytes(), nil
}

// Slug normalizes a role title into a template file stem.
func Slug(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_' || r == '/':
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	result := strings.Trim(b.String(), "-")
	if result == "" {
		return "agent"
	}
	return result
}

func agentLabel(r *roster.Roster, id int) string {
	if r != nil {
		if def, ok := r.FindByID(id); ok {
			return fmt.Sprintf("%s (agent %d)", def.Name, def.ID)
		}
	}
	return fmt.Sprintf("agent %d", id)
}
