package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"licenseiq/internal/rules"
	"licenseiq/pkg/platform/sentinel"
)

// PostgresStore persists rule versions in the rule_versions table. Predicates
// are stored as JSONB; the (tenant_id, rule_id, version) primary key makes
// version immutability a database fact.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Put(ctx context.Context, rule rules.Rule) error {
	predicate, err := json.Marshal(rule.Predicate)
	if err != nil {
		return fmt.Errorf("marshal predicate: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rule_versions
			(tenant_id, rule_id, version, state, action, reason_code, citation,
			 traffic_fraction, de_minimis_pct, predicate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rule.TenantID, rule.RuleID, rule.Version, rule.State, rule.Action,
		rule.ReasonCode, rule.Citation, rule.TrafficFraction,
		rule.DeMinimisThresholdPct, predicate, rule.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert rule version: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, ruleID string, version int) (rules.Rule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, rule_id, version, state, action, reason_code, citation,
		       traffic_fraction, de_minimis_pct, predicate, created_at
		FROM rule_versions
		WHERE tenant_id = $1 AND rule_id = $2 AND version = $3`,
		tenantID, ruleID, version,
	)
	return scanRule(row)
}

func (s *PostgresStore) ListVersions(ctx context.Context, tenantID, ruleID string) ([]rules.Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, rule_id, version, state, action, reason_code, citation,
		       traffic_fraction, de_minimis_pct, predicate, created_at
		FROM rule_versions
		WHERE tenant_id = $1 AND rule_id = $2
		ORDER BY version`,
		tenantID, ruleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rule versions: %w", err)
	}
	defer rows.Close()

	out, err := collectRules(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

func (s *PostgresStore) ListLive(ctx context.Context, tenantID string) ([]rules.Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, rule_id, version, state, action, reason_code, citation,
		       traffic_fraction, de_minimis_pct, predicate, created_at
		FROM rule_versions
		WHERE tenant_id = $1 AND state IN ('production', 'canary', 'shadow')
		ORDER BY rule_id, version`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list live rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func (s *PostgresStore) UpdateState(ctx context.Context, tenantID, ruleID string, version int, state rules.LifecycleState) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rule_versions SET state = $4
		WHERE tenant_id = $1 AND rule_id = $2 AND version = $3`,
		tenantID, ruleID, version, state,
	)
	if err != nil {
		return fmt.Errorf("update rule state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (rules.Rule, error) {
	var rule rules.Rule
	var predicate []byte
	err := row.Scan(
		&rule.TenantID, &rule.RuleID, &rule.Version, &rule.State, &rule.Action,
		&rule.ReasonCode, &rule.Citation, &rule.TrafficFraction,
		&rule.DeMinimisThresholdPct, &predicate, &rule.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rules.Rule{}, sentinel.ErrNotFound
	}
	if err != nil {
		return rules.Rule{}, fmt.Errorf("scan rule version: %w", err)
	}
	if err := json.Unmarshal(predicate, &rule.Predicate); err != nil {
		return rules.Rule{}, fmt.Errorf("unmarshal predicate: %w", err)
	}
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]rules.Rule, error) {
	var out []rules.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
