package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

// unmarshalConversationState decodes a stored state_json payload.
func unmarshalConversationState(payload string) (*models.ConversationState, error) {
	var state models.ConversationState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return &state, nil
}

// unmarshalReviewRequest decodes a stored request_json payload.
func unmarshalReviewRequest(payload string) (*models.HumanReviewRequest, error) {
	var req models.HumanReviewRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review request: %w", err)
	}
	return &req, nil
}

// collectConversationStates scans state_json rows into states.
func collectConversationStates(rows *sql.Rows) ([]models.ConversationState, error) {
	var out []models.ConversationState
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan conversation state row: %w", err)
		}
		state, err := unmarshalConversationState(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation state rows: %w", err)
	}
	return out, nil
}

// collectReviewRequests scans request_json rows into requests.
func collectReviewRequests(rows *sql.Rows) ([]models.HumanReviewRequest, error) {
	var out []models.HumanReviewRequest
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan review request row: %w", err)
		}
		req, err := unmarshalReviewRequest(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review request rows: %w", err)
	}
	return out, nil
}
