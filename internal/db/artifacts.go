package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SaveArtifact stores one step execution's output. Artifacts are append-only:
// one row per (request, step, attempt), never updated.
func (db *DB) SaveArtifact(ctx context.Context, requestID int64, stepName string, attempt int, data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO artifacts (request_id, step_name, attempt, data_json)
		 VALUES ($1, $2, $3, $4)`,
		requestID, stepName, attempt, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", stepName, err)
	}
	return nil
}

// GetLatestArtifact retrieves the newest artifact for a step, or nil when the
// step never produced one.
func (db *DB) GetLatestArtifact(ctx context.Context, requestID int64, stepName string) (*Artifact, error) {
	var a Artifact
	var dataJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, request_id, step_name, attempt, data_json, created_at
		 FROM artifacts
		 WHERE request_id = $1 AND step_name = $2
		 ORDER BY attempt DESC, created_at DESC
		 LIMIT 1`,
		requestID, stepName,
	).Scan(&a.ID, &a.RequestID, &a.StepName, &a.Attempt, &dataJSON, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", stepName, err)
	}

	if len(dataJSON) > 0 {
		_ = json.Unmarshal(dataJSON, &a.Data)
	}
	return &a, nil
}

// ListArtifacts retrieves a request's full artifact history in creation order,
// the replayable record of everything its pipeline runs produced.
func (db *DB) ListArtifacts(ctx context.Context, requestID int64) ([]Artifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, request_id, step_name, attempt, data_json, created_at
		 FROM artifacts
		 WHERE request_id = $1
		 ORDER BY created_at ASC`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		var dataJSON []byte
		if err := rows.Scan(&a.ID, &a.RequestID, &a.StepName, &a.Attempt, &dataJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		if len(dataJSON) > 0 {
			_ = json.Unmarshal(dataJSON, &a.Data)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
