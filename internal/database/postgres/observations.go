package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-sorter/internal/faces"
)

// ObservationRepository mirrors a face store into PostgreSQL so observations
// can be queried and similarity-searched with pgvector.
type ObservationRepository struct {
	pool *Pool
}

// NewObservationRepository creates a repository over a connection pool.
func NewObservationRepository(pool *Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// ReplaceAll atomically replaces the stored observation set with the given
// one. Used after a run to publish its results.
func (r *ObservationRepository) ReplaceAll(ctx context.Context, observations []faces.Observation) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM observations"); err != nil {
		return fmt.Errorf("delete observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (id, source_path, face_index, bbox, det_score, embedding, cluster_id)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range observations {
		obs := &observations[i]
		bbox := pq.Float64Array{obs.BBox.X1, obs.BBox.Y1, obs.BBox.X2, obs.BBox.Y2}
		if _, err := stmt.ExecContext(ctx,
			obs.ID,
			obs.SourcePath,
			obs.FaceIndex,
			bbox,
			obs.BBox.Confidence,
			pgvector.NewVector(obs.Embedding),
			obs.ClusterID,
		); err != nil {
			return fmt.Errorf("insert observation %d: %w", obs.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateCluster updates the cluster assignment of one observation.
func (r *ObservationRepository) UpdateCluster(ctx context.Context, id int64, clusterID int) error {
	if _, err := r.pool.Exec(ctx,
		"UPDATE observations SET cluster_id = $1 WHERE id = $2", clusterID, id,
	); err != nil {
		return fmt.Errorf("update cluster: %w", err)
	}
	return nil
}

// Count returns the number of stored observations.
func (r *ObservationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM observations").Scan(&count); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return count, nil
}

// GetAll returns all stored observations ordered by id.
func (r *ObservationRepository) GetAll(ctx context.Context) ([]faces.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_path, face_index, bbox, det_score, embedding, cluster_id
		FROM observations
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByCluster returns the observations of one raw cluster ordered by id.
func (r *ObservationRepository) GetByCluster(ctx context.Context, clusterID int) ([]faces.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_path, face_index, bbox, det_score, embedding, cluster_id
		FROM observations
		WHERE cluster_id = $1
		ORDER BY id
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// FindSimilar returns the observations nearest to the query embedding in
// cosine distance, closest first.
func (r *ObservationRepository) FindSimilar(
	ctx context.Context, embedding []float32, limit int,
) ([]faces.Observation, []float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_path, face_index, bbox, det_score, embedding, cluster_id,
		       embedding <=> $1::vector AS distance
		FROM observations
		ORDER BY distance
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar observations: %w", err)
	}
	defer rows.Close()

	var observations []faces.Observation
	var distances []float64
	for rows.Next() {
		var dist float64
		obs, err := scanObservation(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		observations = append(observations, obs)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, distances, nil
}

// scanObservation scans one row, with optional extra destinations appended
// after the standard columns (e.g. a distance column).
func scanObservation(scanner interface{ Scan(...any) error }, extraDest ...any) (faces.Observation, error) {
	var obs faces.Observation
	var vec pgvector.Vector
	var bbox pq.Float64Array

	dest := make([]any, 0, 7+len(extraDest))
	dest = append(dest,
		&obs.ID,
		&obs.SourcePath,
		&obs.FaceIndex,
		&bbox,
		&obs.BBox.Confidence,
		&vec,
		&obs.ClusterID,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return obs, fmt.Errorf("scan observation: %w", err)
	}

	obs.Embedding = vec.Slice()
	if len(bbox) == 4 {
		obs.BBox.X1, obs.BBox.Y1, obs.BBox.X2, obs.BBox.Y2 = bbox[0], bbox[1], bbox[2], bbox[3]
	}
	return obs, nil
}

func scanObservations(rows *sql.Rows) ([]faces.Observation, error) {
	var observations []faces.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, nil
}
