package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/database"
)

// Store journals pending operations to embedded SQLite so queued writes
// survive a process restart. Replay order is the insertion order.
type Store struct {
	db *database.DB
}

type pendingRow struct {
	Seq        int64     `db:"seq"`
	ID         string    `db:"id"`
	OpType     string    `db:"op_type"`
	Payload    []byte    `db:"payload"`
	EnqueuedAt time.Time `db:"enqueued_at"`
}

// NewStore creates the journal table if needed
func NewStore(db *database.DB) (*Store, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS pending_operations (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			op_type     TEXT NOT NULL,
			payload     BLOB NOT NULL,
			enqueued_at TIMESTAMP NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create pending_operations table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save appends an operation to the journal
func (s *Store) Save(ctx context.Context, op *domain.PendingOperation) error {
	query := `
		INSERT INTO pending_operations (id, op_type, payload, enqueued_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, op.ID, string(op.Type), []byte(op.Payload), op.EnqueuedAt)
	return err
}

// Delete removes an operation after replay or drop
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = $1`, id)
	return err
}

// Load returns all journaled operations in enqueue order
func (s *Store) Load(ctx context.Context) ([]*domain.PendingOperation, error) {
	var rows []pendingRow
	query := `SELECT seq, id, op_type, payload, enqueued_at FROM pending_operations ORDER BY seq`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	ops := make([]*domain.PendingOperation, len(rows))
	for i, r := range rows {
		ops[i] = &domain.PendingOperation{
			ID:         r.ID,
			Type:       domain.OperationType(r.OpType),
			Payload:    r.Payload,
			EnqueuedAt: r.EnqueuedAt,
		}
	}
	return ops, nil
}
