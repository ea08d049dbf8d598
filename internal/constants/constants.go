// Package constants provides centralized constant values used throughout bob.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

// Directory names used by bob for organizing session state.
const (
	// BobHome is the hidden directory name where bob stores all its data.
	// This directory is created in the user's home directory.
	BobHome = ".bob"

	// LegacyHome is the pre-rename home directory. Sessions found under it
	// are still readable; new sessions are always written under BobHome.
	LegacyHome = ".metaagent"

	// SessionsDir is the directory name where session data is stored.
	SessionsDir = "sessions"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// File names used by bob for per-session state persistence.
const (
	// TasksFileName is the JSON file that stores the task graph.
	TasksFileName = "tasks.json"

	// PlannerFileName is the raw markdown planner document.
	PlannerFileName = "planner.md"

	// RollingContextFileName is the JSON file that stores the bounded
	// recent-status buffer shown to later agents.
	RollingContextFileName = "rolling_context.json"

	// TaskFailsFileName is the append-only JSON failure ledger.
	TaskFailsFileName = "task-fails.json"

	// ProjectInfoFileName is the raw markdown description of the target project.
	ProjectInfoFileName = "project_info.md"

	// SessionMetaFileName is the JSON file that stores session attributes
	// plus the selected backend.
	SessionMetaFileName = "session_meta.json"

	// LockFileName signals an open session. Held with an advisory flock
	// for the lifetime of the session handle.
	LockFileName = ".lock"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global bob configuration file.
	// This file is located in the bob home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project-specific bob configuration
	// file. This file is located in the project root directory.
	ProjectConfigName = ".bob.yaml"

	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.bob/logs/bob.log
	CLILogFileName = "bob.log"
)

// Bounds for engine-visible buffers.
const (
	// DefaultRollingContextCap is the default maximum number of rolling
	// context entries retained per session. Oldest entries are evicted first.
	DefaultRollingContextCap = 64

	// RetryContextDepth is the number of prior failure summaries for the
	// same task exposed to the next prompt context.
	RetryContextDepth = 3
)

// Schema version constants for data migration support.
const (
	// TasksSchemaVersion is the current version of the tasks.json schema.
	TasksSchemaVersion = 1

	// SessionMetaSchemaVersion is the current version of the
	// session_meta.json schema.
	SessionMetaSchemaVersion = 1
)
