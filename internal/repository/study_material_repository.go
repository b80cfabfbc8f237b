package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-book-exchange/internal/models"
)

const materialColumns = `id, user_id, title, file_name, file_path, description, semester, department, status, created_at`

// StudyMaterialRepository persists shared files.
type StudyMaterialRepository struct {
	db *sqlx.DB
}

// NewStudyMaterialRepository constructs the repository.
func NewStudyMaterialRepository(db *sqlx.DB) *StudyMaterialRepository {
	return &StudyMaterialRepository{db: db}
}

// Create inserts an upload awaiting moderation.
func (r *StudyMaterialRepository) Create(ctx context.Context, m *models.StudyMaterial) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Status = models.MaterialPending
	const query = `INSERT INTO files (user_id, title, file_name, file_path, description, semester, department, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query,
		m.UserID, m.Title, m.FileName, m.FilePath, m.Description, m.Semester, m.Department, m.Status, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create study material: %w", err)
	}
	m.ID = id
	return nil
}

// GetByID fetches a material; sql.ErrNoRows when missing.
func (r *StudyMaterialRepository) GetByID(ctx context.Context, id int64) (*models.StudyMaterial, error) {
	var m models.StudyMaterial
	if err := r.db.GetContext(ctx, &m, r.db.Rebind(`SELECT `+materialColumns+` FROM files WHERE id = ?`), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get study material: %w", err)
	}
	return &m, nil
}

// ListByStatus returns materials in the given status, newest first.
func (r *StudyMaterialRepository) ListByStatus(ctx context.Context, status string) ([]models.StudyMaterial, error) {
	var list []models.StudyMaterial
	query := r.db.Rebind(`SELECT ` + materialColumns + ` FROM files WHERE status = ? ORDER BY created_at DESC, id DESC`)
	if err := r.db.SelectContext(ctx, &list, query, status); err != nil {
		return nil, fmt.Errorf("list study materials: %w", err)
	}
	return list, nil
}

// Approve publishes a pending material; sql.ErrNoRows when it is missing or
// not pending.
func (r *StudyMaterialRepository) Approve(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, "approve study material", `UPDATE files SET status = ? WHERE id = ? AND status = ?`,
		models.MaterialApproved, id, models.MaterialPending)
}

// Delete removes a material row.
func (r *StudyMaterialRepository) Delete(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, "delete study material", `DELETE FROM files WHERE id = ?`, id)
}
