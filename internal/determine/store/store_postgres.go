package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licenseiq/internal/domain"
	"licenseiq/pkg/platform/sentinel"
	"licenseiq/pkg/requestcontext"
)

// PostgresDecisionStore persists decisions durably. Line outcomes are stored
// as a JSONB document; the idempotency index is a separate row so expired
// keys can be ignored without touching the decision itself.
//
// Schema:
//
//	CREATE TABLE decisions (
//	    tenant_id    TEXT        NOT NULL,
//	    audit_id     UUID        NOT NULL,
//	    order_id     TEXT        NOT NULL,
//	    outcome      TEXT        NOT NULL,
//	    lines        JSONB       NOT NULL,
//	    evaluated_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, audit_id)
//	);
//
//	CREATE TABLE decision_idempotency (
//	    tenant_id  TEXT        NOT NULL,
//	    idem_key   TEXT        NOT NULL,
//	    audit_id   UUID        NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, idem_key)
//	);
type PostgresDecisionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDecisionStore(pool *pgxpool.Pool) *PostgresDecisionStore {
	return &PostgresDecisionStore{pool: pool}
}

func (s *PostgresDecisionStore) Save(ctx context.Context, decision domain.Decision, idempotencyKey string, window time.Duration) error {
	lines, err := json.Marshal(decision.Lines)
	if err != nil {
		return fmt.Errorf("marshal line outcomes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO decisions (tenant_id, audit_id, order_id, outcome, lines, evaluated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		decision.TenantID, decision.AuditID, decision.OrderID, string(decision.Outcome), lines, decision.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	if idempotencyKey != "" {
		_, err = tx.Exec(ctx,
			`INSERT INTO decision_idempotency (tenant_id, idem_key, audit_id, expires_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tenant_id, idem_key) DO UPDATE
			 SET audit_id = EXCLUDED.audit_id, expires_at = EXCLUDED.expires_at`,
			decision.TenantID, idempotencyKey, decision.AuditID, requestcontext.Now(ctx).Add(window),
		)
		if err != nil {
			return fmt.Errorf("insert idempotency record: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresDecisionStore) FindByKey(ctx context.Context, tenantID, idempotencyKey string) (*domain.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT d.tenant_id, d.audit_id, d.order_id, d.outcome, d.lines, d.evaluated_at
		 FROM decision_idempotency i
		 JOIN decisions d ON d.tenant_id = i.tenant_id AND d.audit_id = i.audit_id
		 WHERE i.tenant_id = $1 AND i.idem_key = $2 AND i.expires_at > $3`,
		tenantID, idempotencyKey, requestcontext.Now(ctx),
	)
	return scanDecision(row)
}

func (s *PostgresDecisionStore) Get(ctx context.Context, tenantID string, auditID uuid.UUID) (*domain.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT tenant_id, audit_id, order_id, outcome, lines, evaluated_at
		 FROM decisions
		 WHERE tenant_id = $1 AND audit_id = $2`,
		tenantID, auditID,
	)
	return scanDecision(row)
}

func scanDecision(row pgx.Row) (*domain.Decision, error) {
	var (
		decision domain.Decision
		outcome  string
		lines    []byte
	)
	err := row.Scan(&decision.TenantID, &decision.AuditID, &decision.OrderID, &outcome, &lines, &decision.EvaluatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	decision.Outcome = domain.Outcome(outcome)
	if err := json.Unmarshal(lines, &decision.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal line outcomes: %w", err)
	}
	return &decision, nil
}
