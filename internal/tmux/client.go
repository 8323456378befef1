// Thin tmux client. Every tmux invocation goes through the Runner
// interface so the whole layer is testable without a tmux binary; the
// default runner shells out.

package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes tmux commands with optional stdin data.
type Runner interface {
	Run(args []string, input []byte) ([]byte, error)
}

// Client executes tmux commands.
type Client struct {
	runner Runner
}

// NewClient returns a tmux client using the default command runner.
func NewClient() *Client {
	return &Client{runner: execRunner{}}
}

// NewClientWithRunner returns a tmux client using a custom runner.
func NewClientWithRunner(runner Runner) *Client {
	return &Client{runner: runner}
}

// Available reports whether a tmux binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// InsideTmux reports whether the current process runs inside a tmux
// pane.
func InsideTmux() bool {
	return strings.TrimSpace(os.Getenv("TMUX")) != ""
}

// NewSession creates a detached session whose first window runs command.
func (c *Client) NewSession(session, windowName, command string) error {
	args := []string{"new-session", "-d", "-s", session}
	if strings.TrimSpace(windowName) != "" {
		args = append(args, "-n", windowName)
	}
	if strings.TrimSpace(command) != "" {
		args = append(args, command)
	}
	return c.run(args, nil)
}

// NewWindow creates a window in an existing session running command.
func (c *Client) NewWindow(session, windowName, command string) error {
	args := []string{"new-window", "-t", session}
	if strings.TrimSpace(windowName) != "" {
		args = append(args, "-n", windowName)
	}
	if strings.TrimSpace(command) != "" {
		args = append(args, command)
	}
	return c.run(args, nil)
}

// SplitPane splits the target pane and runs command in the new pane.
// Horizontal means side by side; otherwise the split stacks.
func (c *Client) SplitPane(target string, horizontal bool, command string) error {
	direction := "-v"
	if horizontal {
		direction = "-h"
	}
	args := []string{"split-window", "-d", direction, "-t", target}
	if strings.TrimSpace(command) != "" {
		args = append(args, command)
	}
	return c.run(args, nil)
}

// SelectWindow focuses the target window.
func (c *Client) SelectWindow(target string) error {
	return c.run([]string{"select-window", "-t", target}, nil)
}

// SendKeys types text into a target pane followed by Enter.
func (c *Client) SendKeys(target, text string) error {
	return c.run([]string{"send-keys", "-t", target, text, "Enter"}, nil)
}

// SetEnvironment records a session-scoped environment variable for
// panes created afterwards.
func (c *Client) SetEnvironment(session, key, value string) error {
	return c.run([]string{"set-environment", "-t", session, key, value}, nil)
}

// KillSession terminates a tmux session.
func (c *Client) KillSession(session string) error {
	return c.run([]string{"kill-session", "-t", session}, nil)
}

// HasSession reports whether the named session exists. A non-zero tmux
// exit simply means "no such session".
func (c *Client) HasSession(session string) (bool, error) {
	if c == nil || c.runner == nil {
		return false, errors.New("tmux: runner unavailable")
	}
	output, err := c.runner.Run([]string{"has-session", "-t", session}, nil)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		if len(output) > 0 {
			return false, fmt.Errorf("tmux has-session failed: %s", bytes.TrimSpace(output))
		}
		return false, fmt.Errorf("tmux has-session failed: %w", err)
	}
	return true, nil
}

// CurrentPane returns the pane id the process runs in, when inside tmux.
func (c *Client) CurrentPane() (string, error) {
	output, err := c.runWithOutput([]string{"display-message", "-p", "#{pane_id}"}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (c *Client) run(args []string, input []byte) error {
	_, err := c.runWithOutput(args, input)
	return err
}

func (c *Client) runWithOutput(args []string, input []byte) ([]byte, error) {
	if c == nil || c.runner == nil {
		return nil, errors.New("tmux: runner unavailable")
	}
	output, err := c.runner.Run(args, input)
	if err != nil {
		if len(output) > 0 {
			return nil, fmt.Errorf("tmux %s failed: %s", args[0], bytes.TrimSpace(output))
		}
		return nil, fmt.Errorf("tmux %s failed: %w", args[0], err)
	}
	return output, nil
}

type execRunner struct{}

func (execRunner) Run(args []string, input []byte) ([]byte, error) {
	cmd := exec.Command("tmux", args...)
	if len(input) > 0 {
		cmd.Stdin = bytes.NewReader(input)
	}
	return cmd.CombinedOutput()
}
