package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bankcrm/bankcrm/internal/platform/db"
)

// Repository persists leads.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Lead, error)
	List(ctx context.Context, filter ListFilter) ([]Lead, int, error)
	Create(ctx context.Context, lead Lead) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Assign(ctx context.Context, id, userID int64) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context, assignedTo int64) (map[Status]int, error)
	CountByOwner(ctx context.Context) ([]OwnerCount, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectLead = `
	SELECT l.id, l.name, l.phone, l.email, l.product, l.source, l.status, l.value,
	       l.assigned_to, COALESCE(u.name, ''), l.created_by, l.created_at, l.updated_at
	FROM leads l
	LEFT JOIN users u ON u.id = l.assigned_to`

func (r *repository) Get(ctx context.Context, id int64) (*Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx, selectLead+` WHERE l.id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Lead, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if filter.AssignedTo > 0 {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("l.assigned_to = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(l.name ILIKE $%d OR l.phone ILIKE $%d OR l.email ILIKE $%d)", len(args), len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads l`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("leads: count: %w", err)
	}

	limit, offset := filter.limitOffset()
	args = append(args, limit, offset)
	query := selectLead + where + fmt.Sprintf(" ORDER BY l.updated_at DESC, l.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, lead Lead) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO leads (name, phone, email, product, source, status, value, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		lead.Name, lead.Phone, lead.Email, lead.Product, lead.Source, string(lead.Status), lead.Value, lead.AssignedTo, lead.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("leads: create: %w", err)
	}
	return id, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	return r.exec(ctx, `UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

func (r *repository) Assign(ctx context.Context, id, userID int64) error {
	return r.exec(ctx, `UPDATE leads SET assigned_to = $2, updated_at = NOW() WHERE id = $1`, id, userID)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
}

func (r *repository) CountByStatus(ctx context.Context, assignedTo int64) (map[Status]int, error) {
	query := `SELECT status, COUNT(*) FROM leads`
	var args []interface{}
	if assignedTo > 0 {
		query += ` WHERE assigned_to = $1`
		args = append(args, assignedTo)
	}
	rows, err := r.db.Query(ctx, query+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("leads: count by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *repository) CountByOwner(ctx context.Context) ([]OwnerCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.name, l.status, COUNT(*), COALESCE(SUM(l.value), 0)
		FROM leads l
		JOIN users u ON u.id = l.assigned_to
		GROUP BY u.id, u.name, l.status
		ORDER BY u.name, u.id`)
	if err != nil {
		return nil, fmt.Errorf("leads: count by owner: %w", err)
	}
	defer rows.Close()
	var out []OwnerCount
	index := make(map[int64]int)
	for rows.Next() {
		var (
			userID int64
			name   string
			status string
			n      int
			value  float64
		)
		if err := rows.Scan(&userID, &name, &status, &n, &value); err != nil {
			return nil, err
		}
		i, ok := index[userID]
		if !ok {
			i = len(out)
			index[userID] = i
			out = append(out, OwnerCount{UserID: userID, Name: name, Counts: make(map[Status]int)})
		}
		out[i].Counts[Status(status)] = n
		out[i].Value += value
	}
	return out, rows.Err()
}

func (r *repository) exec(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("leads: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var (
		lead   Lead
		status string
	)
	err := row.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.Product, &lead.Source, &status, &lead.Value,
		&lead.AssignedTo, &lead.AssigneeName, &lead.CreatedBy, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	lead.Status = Status(status)
	return lead, nil
}
