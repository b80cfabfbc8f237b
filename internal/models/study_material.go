package models

import "time"

const (
	MaterialPending  = "pending"
	MaterialApproved = "approved"
)

// StudyMaterial is a shared file stored in the files table.
type StudyMaterial struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	FileName    string    `db:"file_name" json:"file_name"`
	FilePath    string    `db:"file_path" json:"-"`
	Description string    `db:"description" json:"description"`
	Semester    string    `db:"semester" json:"semester"`
	Department  string    `db:"department" json:"department"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
