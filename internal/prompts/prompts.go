package prompts

import (
	"fmt"
	"strings"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
)

// ForRole returns the builder for a task kind. Unknown kinds get the
// implementation builder, which is the most conservative wording.
func ForRole(kind constants.TaskKind) Builder {
	switch kind {
	case constants.KindAudit:
		return BuildAuditPrompt
	case constants.KindTestWrite:
		return BuildTestWritePrompt
	case constants.KindTestRun:
		return BuildTestRunPrompt
	case constants.KindFinalAudit:
		return BuildFinalAuditPrompt
	default:
		return BuildImplementationPrompt
	}
}

// BuildImplementationPrompt renders the implementation sub-agent prompt.
func BuildImplementationPrompt(in Input) string {
	var b strings.Builder
	writeDocs(&b, in.Task.Docs)
	b.WriteString("You are an implementation sub-agent.\n")
	fmt.Fprintf(&b, "Top-level task: %s\n", in.Scope.Title)
	fmt.Fprintf(&b, "Implementation subtask: %s\n", in.Task.Title)
	fmt.Fprintf(&b, "Implementation details:\n%s\n", taskBody(in.Task))
	fmt.Fprintf(&b, "Rolling task context:\n%s\n", contextBlock(in.RollingContext))
	writeFeedback(&b, in.PriorFailures, "No audit feedback yet; implement from task prompt.")
	b.WriteString("Guardrail: do not create or modify tests unless this task explicitly covers test infrastructure.\n")
	b.WriteString("End your response with a structured changed-files summary block using this exact format:\n")
	b.WriteString(FilesChangedBegin + "\n")
	b.WriteString("- path/to/file.ext: brief description of what changed\n")
	b.WriteString(FilesChangedEnd + "\n")
	b.WriteString("Include every file you changed. If no files changed, include a single bullet with reason.\n")
	b.WriteString("Provide concise progress updates and finish with what changed.")
	return b.String()
}

// BuildAuditPrompt renders the audit sub-agent prompt, with strictness
// scaled down on later attempts so exhaustion converges on real blockers.
func BuildAuditPrompt(in Input) string {
	var b strings.Builder
	writeDocs(&b, in.Task.Docs)
	b.WriteString("You are an audit sub-agent reviewing an implementation.\n")
	fmt.Fprintf(&b, "Top-level task: %s\n", in.Scope.Title)
	fmt.Fprintf(&b, "Audit subtask: %s\n", in.Task.Title)
	if in.Task.Concern != "" {
		fmt.Fprintf(&b, "Audit concern: %s\n", in.Task.Concern)
	}
	fmt.Fprintf(&b, "Audit details:\n%s\n", taskBody(in.Task))
	fmt.Fprintf(&b, "Strictness policy: %s\n", auditStrictness(in.Attempt))
	fmt.Fprintf(&b, "Rolling task context:\n%s\n", contextBlock(in.RollingContext))
	writeFeedback(&b, in.PriorFailures, "No prior audit findings.")
	writeAuditProtocol(&b)
	return b.String()
}

// BuildTestWritePrompt renders the test-writer sub-agent prompt.
func BuildTestWritePrompt(in Input) string {
	var b strings.Builder
	writeDocs(&b, in.Task.Docs)
	b.WriteString("You are a test-writing sub-agent.\n")
	fmt.Fprintf(&b, "Top-level task: %s\n", in.Scope.Title)
	fmt.Fprintf(&b, "Test-writing subtask: %s\n", in.Task.Title)
	if in.Task.Concern != "" {
		fmt.Fprintf(&b, "Test concern: %s\n", in.Task.Concern)
	}
	fmt.Fprintf(&b, "Details:\n%s\n", taskBody(in.Task))
	fmt.Fprintf(&b, "Rolling task context:\n%s\n", contextBlock(in.RollingContext))
	writeFeedback(&b, in.PriorFailures, "No prior test feedback.")
	b.WriteString("Write or update tests that validate the intended behavior and regressions.\n")
	b.WriteString("Do not change production code; report blocking issues instead.\n")
	b.WriteString("Finish with a concise summary of the tests you added or changed.")
	return b.String()
}

// BuildTestRunPrompt renders the prompt used when a test_run task is
// executed by an agent rather than the deterministic runner. The
// deterministic runner ignores prompt text entirely.
func BuildTestRunPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a test-runner sub-agent.\n")
	fmt.Fprintf(&b, "Top-level task: %s\n", in.Scope.Title)
	if in.Task.Concern != "" {
		fmt.Fprintf(&b, "Test concern: %s\n", in.Task.Concern)
	}
	b.WriteString("Run the project's deterministic tests and report pass/fail outcomes.\n")
	b.WriteString("Do not modify any files. Report the exact failing cases on failure.")
	return b.String()
}

// BuildFinalAuditPrompt renders the holistic cross-task audit prompt.
func BuildFinalAuditPrompt(in Input) string {
	var b strings.Builder
	writeDocs(&b, in.Task.Docs)
	b.WriteString("You are a final audit sub-agent.\n")
	b.WriteString("Perform a holistic audit across all completed tasks and their outcomes.\n")
	b.WriteString("Focus on cross-task correctness, missing edge cases, integration risk, and overall quality gaps.\n")
	fmt.Fprintf(&b, "Rolling task context:\n%s\n", contextBlock(in.RollingContext))
	fmt.Fprintf(&b, "Current task tree:\n%s\n", taskTree(in))
	writeFeedback(&b, in.PriorFailures, "No prior final-audit feedback.")
	writeAuditProtocol(&b)
	return b.String()
}

// MasterInput is the data for the collaborative planning prompt.
type MasterInput struct {
	// UserMessage is the message the user just typed.
	UserMessage string

	// ExecutionEnabled reports whether execution is currently running.
	ExecutionEnabled bool

	// TasksFile is the absolute path of the session's tasks.json.
	TasksFile string

	// TaskTree is the compact rendering of the current graph.
	TaskTree string

	// RollingContext are the recent session context entries.
	RollingContext []domain.ContextEntry

	// ProjectInfo is the markdown describing the target project.
	ProjectInfo string
}

// BuildMasterPrompt renders the master planning-agent prompt.
func BuildMasterPrompt(in MasterInput) string {
	execState := "disabled"
	if in.ExecutionEnabled {
		execState = "enabled"
	}
	var b strings.Builder
	b.WriteString("You are the master planning agent.\n")
	b.WriteString("Primary responsibilities:\n")
	b.WriteString("1) Answer user questions clearly and directly.\n")
	b.WriteString("2) Collaboratively maintain and update the task graph state.\n")
	b.WriteString("3) If the user asks for additional changes after prior tasks are done, append new tasks instead of replacing completed history.\n")
	b.WriteString("4) After task-list updates are ready, tell the user `/start` is ready to run.\n")
	fmt.Fprintf(&b, "Execution is currently %s. Only start execution when the user explicitly asks to start.\n", execState)
	b.WriteString("`/start` always resumes from the last unfinished task.\n")
	fmt.Fprintf(&b, "Planner storage: read and update this JSON file directly: %s\n", in.TasksFile)
	b.WriteString("Never modify project workspace/source files directly; only session artifacts.\n")
	b.WriteString("File schema: array of objects with fields id, title, body, kind, concern, status, parent_id, docs.\n")
	b.WriteString("kind values: implementation, audit, test_write, test_run, final_audit.\n")
	b.WriteString("Every test_run must have a test_write sibling with the same concern.\n")
	b.WriteString("`docs` is reserved for /attach-docs; set it to [] on new tasks and do not modify it.\n")
	writeProjectInfo(&b, in.ProjectInfo)
	fmt.Fprintf(&b, "Rolling task context:\n%s\n", contextBlock(in.RollingContext))
	fmt.Fprintf(&b, "Current task tree:\n%s\n", emptyFallback(in.TaskTree, "(no tasks)"))
	fmt.Fprintf(&b, "User message:\n%s\n", in.UserMessage)
	b.WriteString("Keep your conversational response concise.")
	return b.String()
}

// PlannerInput is the data for the plan-conversion prompt.
type PlannerInput struct {
	// UserMessage is the message the user just typed (empty for /convert).
	UserMessage string

	// PlannerFile is the absolute path of planner.md.
	PlannerFile string

	// TasksFile is the absolute path of tasks.json.
	TasksFile string

	// PlannerMarkdown is the current plan text.
	PlannerMarkdown string

	// ProjectInfo is the markdown describing the target project.
	ProjectInfo string
}

// BuildPlannerPrompt renders the prompt that converts the collaborative
// plan into executable tasks.
func BuildPlannerPrompt(in PlannerInput) string {
	var b strings.Builder
	b.WriteString("You are the master planning agent and are now in task mode.\n")
	b.WriteString("Convert the current planner markdown into executable tasks.\n")
	fmt.Fprintf(&b, "Read planner markdown at: %s\n", in.PlannerFile)
	fmt.Fprintf(&b, "Update tasks JSON at: %s\n", in.TasksFile)
	b.WriteString("Requirements:\n")
	b.WriteString("- Convert the current plan into concrete task entries and subtasks suitable for execution.\n")
	b.WriteString("- Preserve existing completed task history; append/update pending work to reflect the plan.\n")
	b.WriteString("- Keep the task graph valid: a forest, unique ids, every test_run paired with a test_write of the same concern.\n")
	b.WriteString("- Do not modify docs fields except preserving existing values.\n")
	b.WriteString("- Save tasks.json and then provide a concise summary of what changed.\n")
	writeProjectInfo(&b, in.ProjectInfo)
	if msg := strings.TrimSpace(in.UserMessage); msg != "" {
		fmt.Fprintf(&b, "User message:\n%s\n", msg)
	}
	if plan := strings.TrimSpace(in.PlannerMarkdown); plan != "" {
		fmt.Fprintf(&b, "Current plan:\n%s\n", plan)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildAttachDocsPrompt renders the prompt that asks the agent to attach
// reference documentation to tasks.
func BuildAttachDocsPrompt(tasksFile string, tasks []domain.Task) string {
	var b strings.Builder
	b.WriteString("You are the documentation-attachment sub-agent.\n")
	fmt.Fprintf(&b, "Update tasks JSON at: %s\n", tasksFile)
	b.WriteString("For each task below, research and attach relevant reference documents to its `docs` field\n")
	b.WriteString("as entries of the form {\"title\", \"url\", \"summary\"}. Do not change any other field.\n")
	b.WriteString("Tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.ID, t.Kind, t.Title)
	}
	b.WriteString("Save the file and summarize the documents you attached.")
	return b.String()
}

// auditStrictness scales audit severity down with the attempt number so
// repeated audits converge instead of ping-ponging on nits.
func auditStrictness(attempt int) string {
	switch attempt {
	case 0, 1:
		return "Pass 1 (strict): report all meaningful correctness, safety, reliability, and testability issues."
	case 2:
		return "Pass 2 (moderate): prioritize substantial issues and avoid minor nits that do not materially affect behavior."
	case 3:
		return "Pass 3 (targeted): focus only on high-impact defects or likely regressions."
	default:
		return "Pass 4+ (critical only): only fail for truly critical blockers that would prevent the broader plan from running."
	}
}

func writeAuditProtocol(b *strings.Builder) {
	b.WriteString("Response protocol (required):\n")
	b.WriteString("- First line must be exactly one of:\n")
	b.WriteString("  " + AuditResultPass + "\n")
	b.WriteString("  " + AuditResultFail + "\n")
	b.WriteString("- Then provide concise findings. If PASS, include a brief rationale.\n")
	b.WriteString("- If FAIL, include concrete issues and suggested fixes.")
}

func writeDocs(b *strings.Builder, docs []domain.DocRef) {
	if len(docs) == 0 {
		return
	}
	b.WriteString("Task documentation requirements:\n")
	b.WriteString("- Before starting this task, read every linked document.\n")
	b.WriteString("- Use these docs as primary references while completing this task.\n")
	b.WriteString("Task docs:\n")
	for i, doc := range docs {
		fmt.Fprintf(b, "%d. %s\n", i+1, strings.TrimSpace(doc.Title))
		fmt.Fprintf(b, "   URL: %s\n", strings.TrimSpace(doc.URL))
		if s := strings.TrimSpace(doc.Summary); s != "" {
			fmt.Fprintf(b, "   Summary: %s\n", s)
		}
	}
	b.WriteString("\n")
}

func writeFeedback(b *strings.Builder, failures []domain.FailureRecord, emptyText string) {
	if len(failures) == 0 {
		b.WriteString(emptyText + "\n")
		return
	}
	b.WriteString("Previous failure feedback to address:\n")
	for _, f := range failures {
		fmt.Fprintf(b, "- attempt %d: %s\n", f.Attempt, f.VerdictSummary)
		if d := strings.TrimSpace(f.Details); d != "" {
			fmt.Fprintf(b, "  %s\n", d)
		}
	}
}

func writeProjectInfo(b *strings.Builder, info string) {
	if s := strings.TrimSpace(info); s != "" {
		fmt.Fprintf(b, "Project info:\n%s\n", s)
	}
}

func contextBlock(entries []domain.ContextEntry) string {
	if len(entries) == 0 {
		return "No prior rolling task context."
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%d. %s", i+1, e.Summary)
	}
	return strings.Join(lines, "\n")
}

func taskBody(t domain.Task) string {
	if body := strings.TrimSpace(t.Body); body != "" {
		return body
	}
	return "(no details provided)"
}

func taskTree(in Input) string {
	return emptyFallback(in.TaskTree, "(no tasks)")
}

func emptyFallback(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
