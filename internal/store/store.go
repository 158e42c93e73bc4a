package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cloudlease/blueprints/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// DB defines the database operations used by the store.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the deployment store: blueprint definitions, per-target
// configuration, and deployment history in one logical keyspace.
type Store struct {
	db        DB
	retention time.Duration
}

// New creates a Store. retentionDays bounds how long deployment history rows
// are kept before the external purge reclaims them.
func New(db DB, retentionDays int) *Store {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Store{db: db, retention: time.Duration(retentionDays) * 24 * time.Hour}
}

// CreateBlueprint registers a blueprint. Re-registering the same id updates
// the definition fields and leaves the health counters untouched.
func (s *Store) CreateBlueprint(ctx context.Context, b *model.Blueprint) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO blueprint_records
		   (partition_key, sort_key, record_type, name, tags, created_by,
		    deployment_timeout_minutes, region_concurrency_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (partition_key, sort_key) DO UPDATE SET
		   name = EXCLUDED.name,
		   tags = EXCLUDED.tags,
		   deployment_timeout_minutes = EXCLUDED.deployment_timeout_minutes,
		   region_concurrency_type = EXCLUDED.region_concurrency_type,
		   updated_at = now()`,
		PartitionKey(b.ID), BlueprintSortKey, RecordTypeBlueprint,
		b.Name, b.Tags, b.CreatedBy, b.DeploymentTimeoutMinutes, b.RegionConcurrencyType,
	)
	if err != nil {
		return fmt.Errorf("create blueprint %s: %w", b.ID, err)
	}
	return nil
}

// PutStackSetConfiguration attaches or updates a target configuration under a
// blueprint. Health counters survive configuration updates.
func (s *Store) PutStackSetConfiguration(ctx context.Context, c *model.StackSetConfiguration) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO blueprint_records
		   (partition_key, sort_key, record_type, stack_set_id,
		    administration_role_arn, execution_role_name, regions, deployment_order,
		    max_concurrent_percentage, failure_tolerance_percentage, concurrency_mode)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (partition_key, sort_key) DO UPDATE SET
		   administration_role_arn = EXCLUDED.administration_role_arn,
		   execution_role_name = EXCLUDED.execution_role_name,
		   regions = EXCLUDED.regions,
		   deployment_order = EXCLUDED.deployment_order,
		   max_concurrent_percentage = EXCLUDED.max_concurrent_percentage,
		   failure_tolerance_percentage = EXCLUDED.failure_tolerance_percentage,
		   concurrency_mode = EXCLUDED.concurrency_mode,
		   updated_at = now()`,
		PartitionKey(c.BlueprintID), StackSetSortKey(c.StackSetID), RecordTypeStackSet,
		c.StackSetID, c.AdministrationRoleARN, c.ExecutionRoleName, c.Regions, c.DeploymentOrder,
		c.MaxConcurrentPercentage, c.FailureTolerancePercentage, c.ConcurrencyMode,
	)
	if err != nil {
		return fmt.Errorf("put stackset configuration %s/%s: %w", c.BlueprintID, c.StackSetID, err)
	}
	return nil
}

// RecordDeploymentStartParams holds the parameters for RecordDeploymentStart.
type RecordDeploymentStartParams struct {
	BlueprintID string    `json:"blueprint_id"`
	StackSetID  string    `json:"stack_set_id"`
	LeaseID     string    `json:"lease_id"`
	AccountID   string    `json:"account_id"`
	OperationID string    `json:"operation_id"`
	StartedAt   time.Time `json:"started_at"`
}

// RecordDeploymentStart inserts one deployment history row with status
// IN_PROGRESS. The (target, startedAt, operationId) key makes re-delivery a
// no-op rather than a duplicate row.
func (s *Store) RecordDeploymentStart(ctx context.Context, p RecordDeploymentStartParams) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO blueprint_records
		   (partition_key, sort_key, record_type, stack_set_id, lease_id,
		    account_id, operation_id, status, started_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (partition_key, sort_key) DO NOTHING`,
		PartitionKey(p.BlueprintID), DeploymentSortKey(p.StartedAt, p.OperationID), RecordTypeDeployment,
		p.StackSetID, p.LeaseID, p.AccountID, p.OperationID,
		model.DeploymentInProgress, p.StartedAt.UTC(), p.StartedAt.UTC().Add(s.retention),
	)
	if err != nil {
		return fmt.Errorf("record deployment start %s on %s: %w", p.OperationID, p.StackSetID, err)
	}
	return nil
}

// UpdateDeploymentStatusAndMetricsParams holds the parameters for
// UpdateDeploymentStatusAndMetrics.
type UpdateDeploymentStatusAndMetricsParams struct {
	BlueprintID     string    `json:"blueprint_id"`
	StackSetID      string    `json:"stack_set_id"`
	DeploymentSK    string    `json:"deployment_sk"`
	Status          string    `json:"status"`
	DurationSeconds int64     `json:"duration_seconds"`
	CompletedAt     time.Time `json:"completed_at"`
	ErrorType       *string   `json:"error_type,omitempty"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
}

// UpdateDeploymentStatusAndMetrics transitions one history row from
// IN_PROGRESS to a terminal state and, in the same atomic statement, bumps
// the owning stackset's and blueprint's aggregate counters. The counter
// updates are plain increments guarded by the status transition, so two
// sibling targets finishing at once never lose an increment and re-delivery
// of the same terminal result never double-counts.
//
// It returns true when the transition was applied, false when the row was
// already terminal (or absent) and nothing changed.
func (s *Store) UpdateDeploymentStatusAndMetrics(ctx context.Context, p UpdateDeploymentStatusAndMetricsParams) (bool, error) {
	succeeded := p.Status == model.DeploymentSucceeded

	var applied bool
	err := s.db.QueryRow(ctx,
		`WITH transitioned AS (
		   UPDATE blueprint_records
		      SET status = $4,
		          completed_at = $5,
		          duration_seconds = $6,
		          error_type = $7,
		          error_message = $8,
		          updated_at = now()
		    WHERE partition_key = $1 AND sort_key = $2 AND status = $9
		   RETURNING sort_key
		 ), bump_stackset AS (
		   UPDATE blueprint_records
		      SET deployment_count = deployment_count + 1,
		          successful_deployment_count = successful_deployment_count + CASE WHEN $10 THEN 1 ELSE 0 END,
		          consecutive_failures = CASE WHEN $10 THEN 0 ELSE consecutive_failures + 1 END,
		          last_success_at = CASE WHEN $10 THEN $5::timestamptz ELSE last_success_at END,
		          last_deployment_at = $5,
		          updated_at = now()
		    WHERE partition_key = $1 AND sort_key = $3
		      AND EXISTS (SELECT 1 FROM transitioned)
		   RETURNING sort_key
		 ), bump_blueprint AS (
		   UPDATE blueprint_records
		      SET deployment_count = deployment_count + 1,
		          successful_deployment_count = successful_deployment_count + CASE WHEN $10 THEN 1 ELSE 0 END,
		          last_deployment_at = $5,
		          updated_at = now()
		    WHERE partition_key = $1 AND sort_key = $11
		      AND EXISTS (SELECT 1 FROM transitioned)
		   RETURNING sort_key
		 )
		 SELECT EXISTS (SELECT 1 FROM transitioned)`,
		PartitionKey(p.BlueprintID), p.DeploymentSK, StackSetSortKey(p.StackSetID),
		p.Status, p.CompletedAt.UTC(), p.DurationSeconds, p.ErrorType, p.ErrorMessage,
		model.DeploymentInProgress, succeeded, BlueprintSortKey,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("update deployment status %s on %s: %w", p.DeploymentSK, p.StackSetID, err)
	}
	return applied, nil
}

// BlueprintDetail is a blueprint with all of its target configurations.
type BlueprintDetail struct {
	Blueprint model.Blueprint               `json:"blueprint"`
	StackSets []model.StackSetConfiguration `json:"stack_sets"`
}

// Get returns the blueprint and all its stackset configurations with one
// range query over the shared partition.
func (s *Store) Get(ctx context.Context, blueprintID string) (*BlueprintDetail, error) {
	rows, err := s.db.Query(ctx,
		`SELECT sort_key, record_type, name, tags, created_by,
		        deployment_timeout_minutes, region_concurrency_type,
		        stack_set_id, administration_role_arn, execution_role_name,
		        regions, deployment_order, max_concurrent_percentage,
		        failure_tolerance_percentage, concurrency_mode,
		        deployment_count, successful_deployment_count, consecutive_failures,
		        last_deployment_at, last_success_at, created_at, updated_at
		   FROM blueprint_records
		  WHERE partition_key = $1 AND record_type IN ($2, $3)
		  ORDER BY sort_key`,
		PartitionKey(blueprintID), RecordTypeBlueprint, RecordTypeStackSet,
	)
	if err != nil {
		return nil, fmt.Errorf("get blueprint %s: %w", blueprintID, err)
	}
	defer rows.Close()

	detail := &BlueprintDetail{}
	found := false
	for rows.Next() {
		var (
			sortKey, recordType                              string
			name, createdBy                                  *string
			tags                                             map[string]string
			timeoutMinutes, deploymentOrder                  *int
			regionConcurrency                                *string
			stackSetID, adminRoleARN, execRoleName           *string
			regions                                          []string
			maxConcurrent, failureTolerance                  *int
			concurrencyMode                                  *string
			deployCount, successCount, consecutiveFailures   int64
			lastDeploymentAt, lastSuccessAt                  *time.Time
			createdAt, updatedAt                             time.Time
		)
		if err := rows.Scan(&sortKey, &recordType, &name, &tags, &createdBy,
			&timeoutMinutes, &regionConcurrency,
			&stackSetID, &adminRoleARN, &execRoleName,
			&regions, &deploymentOrder, &maxConcurrent,
			&failureTolerance, &concurrencyMode,
			&deployCount, &successCount, &consecutiveFailures,
			&lastDeploymentAt, &lastSuccessAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan blueprint record: %w", err)
		}

		switch recordType {
		case RecordTypeBlueprint:
			found = true
			detail.Blueprint = model.Blueprint{
				ID:                        blueprintID,
				Name:                      deref(name),
				Tags:                      tags,
				CreatedBy:                 deref(createdBy),
				DeploymentTimeoutMinutes:  derefInt(timeoutMinutes),
				RegionConcurrencyType:     deref(regionConcurrency),
				DeploymentCount:           deployCount,
				SuccessfulDeploymentCount: successCount,
				LastDeploymentAt:          lastDeploymentAt,
				CreatedAt:                 createdAt,
				UpdatedAt:                 updatedAt,
			}
		case RecordTypeStackSet:
			detail.StackSets = append(detail.StackSets, model.StackSetConfiguration{
				BlueprintID:                blueprintID,
				StackSetID:                 deref(stackSetID),
				AdministrationRoleARN:      deref(adminRoleARN),
				ExecutionRoleName:          deref(execRoleName),
				Regions:                    regions,
				DeploymentOrder:            derefInt(deploymentOrder),
				MaxConcurrentPercentage:    derefInt(maxConcurrent),
				FailureTolerancePercentage: derefInt(failureTolerance),
				ConcurrencyMode:            deref(concurrencyMode),
				DeploymentCount:            deployCount,
				SuccessfulDeploymentCount:  successCount,
				ConsecutiveFailures:        consecutiveFailures,
				LastSuccessAt:              lastSuccessAt,
				CreatedAt:                  createdAt,
				UpdatedAt:                  updatedAt,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get blueprint %s: %w", blueprintID, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return detail, nil
}

// ListDeployments returns a target's deployment history, newest first.
func (s *Store) ListDeployments(ctx context.Context, blueprintID, stackSetID string, limit int) ([]model.DeploymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT stack_set_id, lease_id, account_id, operation_id, status,
		        started_at, completed_at, duration_seconds, error_type, error_message, expires_at
		   FROM blueprint_records
		  WHERE partition_key = $1 AND record_type = $2 AND stack_set_id = $3
		  ORDER BY sort_key DESC
		  LIMIT $4`,
		PartitionKey(blueprintID), RecordTypeDeployment, stackSetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deployments for %s/%s: %w", blueprintID, stackSetID, err)
	}
	defer rows.Close()

	var records []model.DeploymentRecord
	for rows.Next() {
		r := model.DeploymentRecord{BlueprintID: blueprintID}
		var durationSeconds *int64
		if err := rows.Scan(&r.StackSetID, &r.LeaseID, &r.AccountID, &r.OperationID, &r.Status,
			&r.StartedAt, &r.CompletedAt, &durationSeconds, &r.ErrorType, &r.ErrorMessage, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan deployment record: %w", err)
		}
		if durationSeconds != nil {
			r.DurationSeconds = *durationSeconds
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetLease retrieves a lease by id. Returns ErrNotFound when the lease has
// been deleted, which callers treat as a non-fatal condition.
func (s *Store) GetLease(ctx context.Context, id string) (*model.Lease, error) {
	var l model.Lease
	err := s.db.QueryRow(ctx,
		`SELECT id, user_email, account_id, status, created_at, updated_at
		   FROM leases WHERE id = $1`, id,
	).Scan(&l.ID, &l.UserEmail, &l.AccountID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lease %s: %w", id, err)
	}
	return &l, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
