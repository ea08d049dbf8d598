// Package agent provides the AgentRunner capability: the mechanism that
// executes one task attempt and returns a Verdict. The workflow core treats
// the runner as opaque; implementations here cover backend CLI processes,
// the deterministic test-command runner, and a scripted stub for tests.
package agent

import (
	"context"
	"strings"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	"github.com/dioko-ai/bob/internal/prompts"
)

// RunContext carries the per-session data a runner needs.
type RunContext struct {
	// SessionDir is the session's artifact directory.
	SessionDir string

	// Cwd is the workspace directory agent processes run in.
	Cwd string

	// TestCommand is the optional shell string for test_run tasks.
	TestCommand string
}

// Runner executes one task attempt and reports a Verdict.
// Run blocks until the attempt finishes or ctx is cancelled; cancellation
// must surface as a cancelled verdict, not an error.
type Runner interface {
	Run(ctx context.Context, role constants.TaskKind, prompt string, rc RunContext) (domain.Verdict, error)
}

// ParseAuditResult scans transcript lines for the audit protocol token.
// It returns the verdict and whether a token was found. Only the first
// non-empty line that matches counts.
func ParseAuditResult(lines []string) (pass, found bool) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch strings.ToUpper(trimmed) {
		case prompts.AuditResultPass:
			return true, true
		case prompts.AuditResultFail:
			return false, true
		}
	}
	return false, false
}

// ExtractChangedFiles returns the normalized contents of the structured
// changed-files block from an implementation transcript, or "" when absent.
func ExtractChangedFiles(lines []string) string {
	merged := strings.Join(lines, "\n")
	begin := strings.Index(merged, prompts.FilesChangedBegin)
	if begin < 0 {
		return ""
	}
	rest := merged[begin+len(prompts.FilesChangedBegin):]
	end := strings.Index(rest, prompts.FilesChangedEnd)
	if end < 0 {
		return ""
	}
	var out []string
	for _, line := range strings.Split(rest[:end], "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

// lastNonEmptyLine returns the final line of output with content, used as
// the one-line verdict summary.
func lastNonEmptyLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return "no output captured"
}

// auditRole reports whether a role answers the audit protocol.
func auditRole(role constants.TaskKind) bool {
	return role == constants.KindAudit || role == constants.KindFinalAudit
}
