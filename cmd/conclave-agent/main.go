// Pane-side bootstrap binary. The tmux layout runs `conclave-agent N`
// in each pane; this resolves the session from the ambient environment
// and hands off to the shim, which owns the agent lifecycle. Kept on
// the standard flag package: it takes one positional id and nothing
// else, and it must start fast inside every pane.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mtavish/conclave/internal/config"
	"github.com/mtavish/conclave/internal/session"
	"github.com/mtavish/conclave/internal/shim"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: conclave-agent <agent-id>\n\n")
		fmt.Fprintf(os.Stderr, "Bootstraps one agent pane. The session is taken from\n")
		fmt.Fprintf(os.Stderr, "%s or %s/%s.\n", shim.EnvSessionDir, config.RootEnv, shim.EnvSessionName)
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	agentID, err := strconv.Atoi(flag.Arg(0))
	if err != nil || agentID < 0 {
		die("agent id must be a non-negative integer, got %q", flag.Arg(0))
	}

	handle, err := resolveHandle()
	if err != nil {
		die("%v", err)
	}
	root, err := config.ResolveRoot("")
	if err != nil {
		die("%v", err)
	}
	cfg, err := config.NewConfig(root)
	if err != nil {
		die("%v", err)
	}

	if err := shim.New(cfg).Run(handle, agentID); err != nil {
		die("%v", err)
	}
}

// resolveHandle locates the session store from the pane environment.
// An explicit session directory wins; otherwise the session name is
// resolved under the project root's store.
func resolveHandle() (session.Handle, error) {
	if dir := strings.TrimSpace(os.Getenv(shim.EnvSessionDir)); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return session.Handle{}, err
		}
		return session.Handle{Name: filepath.Base(abs), Dir: abs}, nil
	}

	name := strings.TrimSpace(os.Getenv(shim.EnvSessionName))
	if name == "" {
		return session.Handle{}, fmt.Errorf("neither %s nor %s is set; run inside a conclave pane", shim.EnvSessionDir, shim.EnvSessionName)
	}
	root, err := config.ResolveRoot("")
	if err != nil {
		return session.Handle{}, err
	}
	cfg, err := config.NewConfig(root)
	if err != nil {
		return session.Handle{}, err
	}
	return session.NewHandle(cfg.SessionsDir(), name), nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "conclave-agent: "+format+"\n", args...)
	os.Exit(1)
}
