package session

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// runGit is the default GitRunner: a plain git invocation inside the
// repository directory, stderr folded into the error.
func runGit(repoDir string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.String(), fmt.Errorf("git %s failed: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

// ResolveWorkDir maps an agent id to its concrete working directory:
// the recorded workspace with any filesystem indirection (symlinks)
// resolved away, so a launched process always sees a real path.
func (s *Store) ResolveWorkDir(agentID int) (string, error) {
	workspaces, err := s.ReadWorkspaces()
	if err != nil {
		return "", fmt.Errorf("session: read workspaces: %w", err)
	}
	dir, ok := workspaces[agentID]
	if !ok {
		return "", fmt.Errorf("session: no workspace recorded for agent %d", agentID)
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("session: workspace %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("session: resolve workspace %s: %w", dir, err)
	}
	return resolved, nil
}
