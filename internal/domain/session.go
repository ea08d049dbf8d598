package domain

import "time"

// SessionMeta holds the durable session attributes plus the selected
// backend, persisted as session_meta.json.
//
// Example JSON representation:
//
//	{
//	    "session_id": "1754400000-9f1c2a",
//	    "title": "Fix auth token refresh",
//	    "created_at": "2026-08-05T10:00:00Z",
//	    "cwd": "/home/dev/project",
//	    "test_command": "go test ./...",
//	    "backend": "codex",
//	    "schema_version": 1
//	}
type SessionMeta struct {
	// SessionID is the opaque identifier, derived from a timestamp plus a
	// random suffix.
	SessionID string `json:"session_id"`

	// Title is the human-readable session title.
	Title string `json:"title"`

	// CreatedAt is when the session was initialized.
	CreatedAt time.Time `json:"created_at"`

	// Cwd is the absolute path of the workspace the session operates on.
	Cwd string `json:"cwd"`

	// TestCommand is the optional shell string run by test_run tasks.
	TestCommand string `json:"test_command,omitempty"`

	// Backend is the agent backend selected when the session was created.
	Backend string `json:"backend,omitempty"`

	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// SessionSummary is one row of the session listing, newest first.
type SessionSummary struct {
	// SessionID is the session identifier.
	SessionID string `json:"session_id"`

	// Dir is the absolute session directory path.
	Dir string `json:"dir"`

	// Title is the session title, possibly empty for unnamed sessions.
	Title string `json:"title,omitempty"`

	// Cwd is the workspace path the session was created in.
	Cwd string `json:"cwd,omitempty"`

	// CreatedAt is when the session was initialized.
	CreatedAt time.Time `json:"created_at"`
}
