package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hrops/be-hr-attendance/internal/database"
	"github.com/hrops/be-hr-attendance/internal/errors"
)

// Direction is the top level of the org hierarchy.
type Direction struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Department belongs to exactly one direction; the same department name may
// exist under different directions.
type Department struct {
	ID           string
	Name         string
	DirectionID  string
	ManagerEmail *string
	CreatedAt    time.Time
}

// Employee is one collaborator, keyed by the matricule business identifier.
// Department/Direction are a denormalized cache of the current assignment.
type Employee struct {
	ID           string
	Matricule    string
	FirstName    string
	LastName     string
	Email        *string
	DepartmentID *string
	DirectionID  *string
	ManagerEmail *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EmployeeUpsert carries the per-row employee fields from the report.
type EmployeeUpsert struct {
	Matricule    string
	FirstName    string
	LastName     string
	DepartmentID *string
	DirectionID  *string
	// FallbackEmail is persisted only when the employee has no email yet;
	// an existing address is never overwritten.
	FallbackEmail string
}

// ReferenceRepository resolves and upserts the reference entities. It runs
// over a Querier so the import can scope it to one transaction.
type ReferenceRepository struct {
	q database.Querier
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(q database.Querier) *ReferenceRepository {
	return &ReferenceRepository{q: q}
}

// ResolveDirection returns the direction with the given name, matched
// case-insensitively, creating it with the original casing on first sight.
func (r *ReferenceRepository) ResolveDirection(ctx context.Context, name string) (*Direction, error) {
	d := &Direction{}

	query := `
		SELECT id, name, created_at
		FROM directions
		WHERE LOWER(name) = LOWER($1)
	`
	err := r.q.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err == nil {
		return d, nil
	}
	if err != pgx.ErrNoRows {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to look up direction")
	}

	insert := `
		INSERT INTO directions (id, name)
		VALUES ($1, $2)
		RETURNING id, name, created_at
	`
	err = r.q.QueryRow(ctx, insert, uuid.NewString(), name).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create direction")
	}

	return d, nil
}

// ResolveDepartment returns the department with the given name under the
// given direction, creating it when absent. Uniqueness is the
// (name, direction) pair: the lookup never reuses a department of the same
// name that hangs under a different direction.
func (r *ReferenceRepository) ResolveDepartment(ctx context.Context, name, directionID string) (*Department, error) {
	d := &Department{}

	query := `
		SELECT id, name, direction_id, manager_email, created_at
		FROM departments
		WHERE LOWER(name) = LOWER($1) AND direction_id = $2
	`
	err := r.q.QueryRow(ctx, query, name, directionID).Scan(
		&d.ID, &d.Name, &d.DirectionID, &d.ManagerEmail, &d.CreatedAt)
	if err == nil {
		return d, nil
	}
	if err != pgx.ErrNoRows {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to look up department")
	}

	insert := `
		INSERT INTO departments (id, name, direction_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, direction_id, manager_email, created_at
	`
	err = r.q.QueryRow(ctx, insert, uuid.NewString(), name, directionID).Scan(
		&d.ID, &d.Name, &d.DirectionID, &d.ManagerEmail, &d.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create department")
	}

	return d, nil
}

// UpsertEmployee creates or updates the employee keyed by matricule. Names
// and assignment always follow the latest row; the email is only backfilled
// when currently absent.
func (r *ReferenceRepository) UpsertEmployee(ctx context.Context, up EmployeeUpsert) (*Employee, error) {
	e := &Employee{}

	query := `
		INSERT INTO employees (id, matricule, first_name, last_name, department_id, direction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (matricule) DO UPDATE
		SET first_name    = EXCLUDED.first_name,
		    last_name     = EXCLUDED.last_name,
		    department_id = EXCLUDED.department_id,
		    direction_id  = EXCLUDED.direction_id,
		    updated_at    = NOW()
		RETURNING id, matricule, first_name, last_name, email, department_id, direction_id,
		          manager_email, created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		uuid.NewString(),
		up.Matricule,
		up.FirstName,
		up.LastName,
		up.DepartmentID,
		up.DirectionID,
	).Scan(
		&e.ID, &e.Matricule, &e.FirstName, &e.LastName, &e.Email,
		&e.DepartmentID, &e.DirectionID, &e.ManagerEmail, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert employee")
	}

	if (e.Email == nil || *e.Email == "") && up.FallbackEmail != "" {
		backfill := `
			UPDATE employees
			SET email = $2, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := r.q.Exec(ctx, backfill, e.ID, up.FallbackEmail); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to backfill employee email")
		}
		email := up.FallbackEmail
		e.Email = &email
	}

	return e, nil
}

// GetEmployee retrieves one employee by internal id.
func (r *ReferenceRepository) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	e := &Employee{}

	query := `
		SELECT id, matricule, first_name, last_name, email, department_id, direction_id,
		       manager_email, created_at, updated_at
		FROM employees
		WHERE id = $1
	`
	err := r.q.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Matricule, &e.FirstName, &e.LastName, &e.Email,
		&e.DepartmentID, &e.DirectionID, &e.ManagerEmail, &e.CreatedAt, &e.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("employee", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get employee")
	}

	return e, nil
}

// SetDepartmentManager assigns the manager address on a department. The
// notification gate reads it back as the cc of anomaly emails.
func (r *ReferenceRepository) SetDepartmentManager(ctx context.Context, departmentID, email string) error {
	query := `UPDATE departments SET manager_email = $2 WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, departmentID, email)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to set department manager")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("department", departmentID)
	}

	return nil
}

// ManagerEmailForDepartment returns the manager address configured on a
// department, or nil when the department has no manager.
func (r *ReferenceRepository) ManagerEmailForDepartment(ctx context.Context, departmentID string) (*string, error) {
	var email *string

	query := `SELECT manager_email FROM departments WHERE id = $1`
	err := r.q.QueryRow(ctx, query, departmentID).Scan(&email)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("department", departmentID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get department manager")
	}

	return email, nil
}
