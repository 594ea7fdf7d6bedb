package notes

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// MarkOverdue flips pending notes whose due date is before now to overdue and
// returns how many changed. Running it twice with the same now changes
// nothing the second time.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notes
		SET status = $2, updated_at = $1
		WHERE status = $3
		  AND due_date IS NOT NULL
		  AND due_date < $1
	`, now.UTC(), string(StatusOverdue), string(StatusPending))
	if err != nil {
		return 0, fmt.Errorf("mark overdue notes: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
