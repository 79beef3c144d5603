package postgres

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// CustomerRepo writes validated import rows into the customers table.
// Each batch statement is its own transaction, so earlier flushes stay
// committed when a later one fails.
type CustomerRepo struct{ Pool PgxPool }

// NewCustomerRepo constructs a CustomerRepo with the given pool.
func NewCustomerRepo(p PgxPool) *CustomerRepo { return &CustomerRepo{Pool: p} }

// ExistingEmails reports which of the given emails already have a customer
// row. Used by the insert_only flusher before writing a batch.
func (r *CustomerRepo) ExistingEmails(ctx domain.Context, emails []string) (map[string]struct{}, error) {
	tracer := otel.Tracer("repo.customers")
	ctx, span := tracer.Start(ctx, "customers.ExistingEmails")
	defer span.End()
	out := make(map[string]struct{}, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	q := `SELECT email FROM customers WHERE email = ANY($1)`
	rows, err := r.Pool.Query(ctx, q, emails)
	if err != nil {
		return nil, fmt.Errorf("op=customer.existing_emails: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("op=customer.existing_emails: %w", err)
		}
		out[email] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=customer.existing_emails: %w", err)
	}
	return out, nil
}

// InsertBatch writes all rows in one multi-row INSERT. Callers guarantee the
// batch holds no email already present in the table and no repeats.
func (r *CustomerRepo) InsertBatch(ctx domain.Context, batch []domain.CustomerRow) error {
	tracer := otel.Tracer("repo.customers")
	ctx, span := tracer.Start(ctx, "customers.InsertBatch")
	defer span.End()
	if len(batch) == 0 {
		return nil
	}
	q, args := buildBatchInsert(batch)
	if _, err := r.Pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("op=customer.insert_batch: %w", err)
	}
	return nil
}

// UpsertBatch inserts or updates rows by email in one statement. The id and
// email of an existing row are preserved; updated_at is refreshed by the
// database. The batch must not repeat an email, which the worker's in-file
// duplicate detection guarantees.
func (r *CustomerRepo) UpsertBatch(ctx domain.Context, batch []domain.CustomerRow) error {
	tracer := otel.Tracer("repo.customers")
	ctx, span := tracer.Start(ctx, "customers.UpsertBatch")
	defer span.End()
	if len(batch) == 0 {
		return nil
	}
	q, args := buildBatchInsert(batch)
	q += ` ON CONFLICT (email) DO UPDATE SET
		first_name=EXCLUDED.first_name,
		last_name=EXCLUDED.last_name,
		phone=EXCLUDED.phone,
		city=EXCLUDED.city,
		updated_at=now()`
	if _, err := r.Pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("op=customer.upsert_batch: %w", err)
	}
	return nil
}

func buildBatchInsert(batch []domain.CustomerRow) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO customers (id, email, first_name, last_name, phone, city) VALUES `)
	args := make([]any, 0, len(batch)*6)
	for i, row := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, uuid.New().String(), row.Email, row.FirstName, row.LastName, row.Phone, row.City)
	}
	return sb.String(), args
}
