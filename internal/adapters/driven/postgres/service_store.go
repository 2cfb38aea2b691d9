package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/locking"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ServiceStore = (*ServiceStore)(nil)

// ServiceStore keeps services in the services table. Advisory locks live in
// this process only.
type ServiceStore struct {
	db    *DB
	locks *locking.Table
}

// NewServiceStore creates a new PostgreSQL-backed ServiceStore
func NewServiceStore(db *DB) *ServiceStore {
	return &ServiceStore{db: db, locks: locking.NewTable()}
}

const serviceColumns = `id, name, plan_id, parameters, op_id, op_type, op_state, op_message, created_at, updated_at`

func (s *ServiceStore) Create(ctx context.Context, service *domain.Service) (*domain.Service, error) {
	if service == nil {
		return nil, fmt.Errorf("create service: %w", domain.ErrInvalidInput)
	}

	created := service.Clone()
	created.ID = uuid.NewString()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	params, err := marshalParameters(created.Parameters)
	if err != nil {
		return nil, err
	}
	op := operationColumnsOf(created.LastOperation)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, created.ID, created.Name, created.PlanID, params,
		op.id, op.opType, op.state, op.message,
		created.CreatedAt, created.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert service %s: %w", created.ID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("insert service: %w", err)
	}

	return created, nil
}

func (s *ServiceStore) Load(ctx context.Context, id string) (*domain.Service, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	service, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query service: %w", err)
	}
	return service, nil
}

func (s *ServiceStore) Lock(ctx context.Context, id string) (*domain.Service, error) {
	fresh, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	service, err := s.Load(ctx, id)
	if err != nil {
		if fresh {
			s.locks.Release(ctx, id)
		}
		return nil, fmt.Errorf("lock service %s: %w", id, err)
	}
	return service, nil
}

func (s *ServiceStore) Update(ctx context.Context, service *domain.Service) error {
	if service == nil || service.ID == "" {
		return fmt.Errorf("update service: id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.locks.Check(ctx, service.ID); err != nil {
		return err
	}

	params, err := marshalParameters(service.Parameters)
	if err != nil {
		return err
	}
	op := operationColumnsOf(service.LastOperation)

	result, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET name = $2, plan_id = $3, parameters = $4,
		    op_id = $5, op_type = $6, op_state = $7, op_message = $8,
		    updated_at = $9
		WHERE id = $1
	`, service.ID, service.Name, service.PlanID, params,
		op.id, op.opType, op.state, op.message,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update service %s: %w", service.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *ServiceStore) Delete(ctx context.Context, service *domain.Service) error {
	if service == nil || service.ID == "" {
		return fmt.Errorf("delete service: id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.locks.Check(ctx, service.ID); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, service.ID); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

func (s *ServiceStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.locks.Transaction(ctx, fn)
}

func (s *ServiceStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*domain.Service, error) {
	var (
		service domain.Service
		params  []byte
		op      operationColumns
	)
	err := row.Scan(
		&service.ID,
		&service.Name,
		&service.PlanID,
		&params,
		&op.id,
		&op.opType,
		&op.state,
		&op.message,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &service.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	service.LastOperation = op.operation()
	return &service, nil
}

// marshalParameters encodes nil parameters as NULL so they load back as nil.
func marshalParameters(params map[string]string) (sql.NullString, error) {
	if params == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal parameters: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// operationColumns is the flattened form of a service's current operation.
// A NULL op_type means the service has no operation.
type operationColumns struct {
	id      sql.NullString
	opType  sql.NullString
	state   sql.NullString
	message sql.NullString
}

func operationColumnsOf(op *domain.Operation) operationColumns {
	if op == nil {
		return operationColumns{}
	}
	return operationColumns{
		id:      sql.NullString{String: op.ID, Valid: op.ID != ""},
		opType:  sql.NullString{String: string(op.Type), Valid: true},
		state:   sql.NullString{String: string(op.State), Valid: true},
		message: sql.NullString{String: op.Message, Valid: op.Message != ""},
	}
}

func (c operationColumns) operation() *domain.Operation {
	if !c.opType.Valid {
		return nil
	}
	return &domain.Operation{
		ID:      c.id.String,
		Type:    domain.OperationType(c.opType.String),
		State:   domain.OperationState(c.state.String),
		Message: c.message.String,
	}
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
