package taskgraph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// rawTask tolerates the loose shapes older planner files produced:
// numeric IDs, docs as a comma-separated string, and missing status/kind
// fields. Everything else round-trips through domain.Task directly.
type rawTask struct {
	ID                json.RawMessage      `json:"id"`
	ParentID          json.RawMessage      `json:"parent_id"`
	Title             string               `json:"title"`
	Body              string               `json:"body"`
	Kind              constants.TaskKind   `json:"kind"`
	Concern           string               `json:"concern"`
	Status            constants.TaskStatus `json:"status"`
	Attempt           int                  `json:"attempt"`
	MaxAttempts       int                  `json:"max_attempts"`
	LinkedFailureRefs []int                `json:"linked_failure_refs"`
	Docs              json.RawMessage      `json:"docs"`
}

// ParseTasks decodes a tasks.json payload into task records, accepting
// legacy field shapes. The result still needs Validate before use.
func ParseTasks(raw []byte) ([]domain.Task, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []rawTask
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: malformed tasks payload: %s", boberrors.ErrValidationFailed, err)
	}

	out := make([]domain.Task, 0, len(rows))
	for i, row := range rows {
		id, err := idString(row.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d: %s", boberrors.ErrValidationFailed, i, err)
		}
		parentID, err := idString(row.ParentID)
		if err != nil {
			return nil, fmt.Errorf("%w: task %q: parent_id: %s", boberrors.ErrValidationFailed, id, err)
		}
		docs, err := parseDocs(row.Docs)
		if err != nil {
			return nil, fmt.Errorf("%w: task %q: docs: %s", boberrors.ErrValidationFailed, id, err)
		}
		out = append(out, domain.Task{
			ID:                id,
			ParentID:          parentID,
			Title:             row.Title,
			Body:              row.Body,
			Kind:              row.Kind,
			Concern:           row.Concern,
			Status:            row.Status,
			Attempt:           row.Attempt,
			MaxAttempts:       row.MaxAttempts,
			LinkedFailureRefs: row.LinkedFailureRefs,
			Docs:              docs,
		})
	}
	return out, nil
}

// idString accepts a JSON string or number and returns its string form.
func idString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("id must be a string or number, got %s", string(raw))
}

// parseDocs accepts the structured doc list, a list of strings, or a single
// comma-separated string (the oldest planner format).
func parseDocs(raw json.RawMessage) ([]domain.DocRef, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var entries []domain.DocRef
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}
	var strs []string
	if err := json.Unmarshal(raw, &strs); err == nil {
		return stringsToDocs(strs), nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return stringsToDocs([]string{one}), nil
	}
	return nil, fmt.Errorf("docs must be a list of entries, a list of strings, or a string")
}

func stringsToDocs(items []string) []domain.DocRef {
	var out []domain.DocRef
	for _, item := range items {
		for _, piece := range strings.Split(item, ",") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			out = append(out, domain.DocRef{Title: piece, URL: piece})
		}
	}
	return out
}
