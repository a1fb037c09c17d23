package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

const (
	uniqueViolation = "23505"
	slotIndex       = "appointments_doctor_slot_uq"
	apptColumns     = `id, patient_id, doctor_id, date, status, notes, created_at, updated_at`
)

func (s *Store) Create(ctx context.Context, a *model.Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (id,patient_id,doctor_id,date,status,notes,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.DoctorID, a.Date, string(a.Status), a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	// partial unique index caught a concurrent booking
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == slotIndex {
		return scheduling.ErrDuplicateSlot
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scheduling.ErrRecordNotFound
	}
	return a, err
}

func (s *Store) Find(ctx context.Context, f scheduling.Filter, limit, offset int) ([]model.Appointment, error) {
	where, args := whereClause(f)
	q := `SELECT ` + apptColumns + ` FROM appointments` + where + ` ORDER BY date, id`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, f scheduling.Filter) (int, error) {
	where, args := whereClause(f)
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&n)
	return n, err
}

// Update is a compare-and-set on status so two racing transitions cannot
// both succeed.
func (s *Store) Update(ctx context.Context, a *model.Appointment, expect model.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status=$1, notes=$2, updated_at=$3
		 WHERE id=$4 AND status=$5`,
		string(a.Status), a.Notes, a.UpdatedAt, a.ID, string(expect),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, a.ID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return scheduling.ErrRecordNotFound
	}
	return scheduling.ErrStaleWrite
}

func whereClause(f scheduling.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != "" {
		add(`patient_id = $%d`, f.PatientID)
	}
	if f.DoctorID != "" {
		add(`doctor_id = $%d`, f.DoctorID)
	}
	if f.Status != "" {
		add(`status = $%d`, string(f.Status))
	}
	if !f.From.IsZero() {
		add(`date >= $%d`, f.From)
	}
	if !f.To.IsZero() {
		add(`date <= $%d`, f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	var st string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &st, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.Status(st)
	return a, nil
}
