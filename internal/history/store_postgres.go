package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"licenseiq/internal/domain"
)

// PostgresStore persists order history durably. Promotion gates look back
// ninety days or more, so history has to outlive the process.
//
// Schema:
//
//	CREATE TABLE order_history (
//	    tenant_id    TEXT        NOT NULL,
//	    order_doc    JSONB       NOT NULL,
//	    outcome      TEXT        NOT NULL,
//	    evaluated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX order_history_window ON order_history (tenant_id, evaluated_at);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Record(ctx context.Context, tenantID string, record Record) error {
	doc, err := json.Marshal(record.Order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO order_history (tenant_id, order_doc, outcome, evaluated_at)
		 VALUES ($1, $2, $3, $4)`,
		tenantID, doc, string(record.Outcome), record.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSince(ctx context.Context, tenantID string, since time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT order_doc, outcome, evaluated_at
		 FROM order_history
		 WHERE tenant_id = $1 AND evaluated_at >= $2
		 ORDER BY evaluated_at ASC`,
		tenantID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			doc     []byte
			outcome string
			record  Record
		)
		if err := rows.Scan(&doc, &outcome, &record.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if err := json.Unmarshal(doc, &record.Order); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		record.Outcome = domain.Outcome(outcome)
		out = append(out, record)
	}
	return out, rows.Err()
}
