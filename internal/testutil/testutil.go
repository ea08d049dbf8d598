// Package testutil provides testing utilities for bob.
//
// This package contains mock errors and graph-building helpers used across
// test files. It should only be imported by test files (*_test.go).
package testutil

import (
	"errors"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
)

// Mock errors for testing purposes.
var (
	// ErrMockIO indicates a mock I/O failure (used in tests).
	ErrMockIO = errors.New("mock io failure")

	// ErrMockAgent indicates a mock agent failure (used in tests).
	ErrMockAgent = errors.New("mock agent failure")
)

// TaskSpec is a compact task description for building test graphs.
type TaskSpec struct {
	ID      string
	Parent  string
	Kind    constants.TaskKind
	Concern string
	Status  constants.TaskStatus
	Attempt int
}

// Tasks expands specs into task records with titles derived from IDs.
// Statuses default to pending via validation.
func Tasks(specs ...TaskSpec) []domain.Task {
	out := make([]domain.Task, len(specs))
	for i, s := range specs {
		out[i] = domain.Task{
			ID:       s.ID,
			ParentID: s.Parent,
			Title:    "Task " + s.ID,
			Kind:     s.Kind,
			Concern:  s.Concern,
			Status:   s.Status,
			Attempt:  s.Attempt,
		}
	}
	return out
}
