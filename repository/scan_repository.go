package repository

import (
	"context"

	"corncare-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScanRepository handles database operations for scans
type ScanRepository struct {
	db DB
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, user_id, image_url, image_path, disease_name, confidence, prediction, notes, timestamp`

func scanScan(row pgx.Row) (*models.Scan, error) {
	scan := &models.Scan{}
	err := row.Scan(
		&scan.ID,
		&scan.UserID,
		&scan.ImageURL,
		&scan.ImagePath,
		&scan.DiseaseName,
		&scan.Confidence,
		&scan.Prediction,
		&scan.Notes,
		&scan.Timestamp,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return scan, nil
}

// Create inserts a scan. scan.ID must be set by the caller since it also names the stored image.
func (r *ScanRepository) Create(ctx context.Context, scan *models.Scan) error {
	query := `
		INSERT INTO scans (
			id, user_id, image_url, image_path, disease_name, confidence, prediction, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING timestamp`

	err := r.db.QueryRow(
		ctx, query,
		scan.ID,
		scan.UserID,
		scan.ImageURL,
		scan.ImagePath,
		scan.DiseaseName,
		scan.Confidence,
		scan.Prediction,
		scan.Notes,
	).Scan(&scan.Timestamp)

	return mapError(err)
}

// GetByIDForUser retrieves a scan owned by userID
func (r *ScanRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1 AND user_id = $2`
	return scanScan(r.db.QueryRow(ctx, query, id, userID))
}

// ListByUserID retrieves the newest scans of a user
func (r *ScanRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Scan, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScans(rows)
}

// ListByIDs retrieves scans by id in no particular order. Missing ids are skipped.
func (r *ScanRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Scan, error) {
	if len(ids) == 0 {
		return []*models.Scan{}, nil
	}

	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScans(rows)
}

func collectScans(rows pgx.Rows) ([]*models.Scan, error) {
	scans := []*models.Scan{}
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}
