package appraisal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const employeeColumns = `id, name, email, role, COALESCE(reporting_manager_id, ''), joining_date, active`

const trackColumns = `employee_id, self_state, rm_state, hr_state, hod_state, coo_state, ceo_state, last_archived_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", employeeID)
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) ListActiveEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+employeeColumns+" FROM employees WHERE active = true ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// UpsertEmployee mirrors a directory record into the local employees table.
func (s *Store) UpsertEmployee(ctx context.Context, emp Employee) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employees (id, name, email, role, reporting_manager_id, joining_date, active)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (id) DO UPDATE
      SET name = EXCLUDED.name,
          email = EXCLUDED.email,
          role = EXCLUDED.role,
          reporting_manager_id = EXCLUDED.reporting_manager_id,
          joining_date = EXCLUDED.joining_date,
          active = EXCLUDED.active,
          updated_at = now()
  `, emp.ID, emp.Name, emp.Email, emp.Role, nullIfEmpty(emp.ReportingManagerID), emp.JoiningDate, emp.Active)
	return err
}

func (s *Store) GetTrack(ctx context.Context, employeeID string) (Track, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+trackColumns+" FROM appraisal_status_tracks WHERE employee_id = $1", employeeID)
	t, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Track{}, ErrTrackNotFound
	}
	return t, err
}

func (s *Store) ListTracks(ctx context.Context) ([]Track, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+trackColumns+" FROM appraisal_status_tracks ORDER BY employee_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateTrack(ctx context.Context, t Track) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO appraisal_status_tracks
      (employee_id, self_state, rm_state, hr_state, hod_state, coo_state, ceo_state, last_archived_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, t.EmployeeID, string(t.States[StageSelf]), string(t.States[StageRM]), string(t.States[StageHR]),
		string(t.States[StageHOD]), string(t.States[StageCOO]), string(t.States[StageCEO]), t.LastArchivedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrTrackExists
	}
	return err
}

const updateTrackSQL = `
    UPDATE appraisal_status_tracks
    SET self_state = $1, rm_state = $2, hr_state = $3, hod_state = $4, coo_state = $5, ceo_state = $6,
        last_archived_at = $7, updated_at = now()
    WHERE employee_id = $8
  `

func trackArgs(t Track) []any {
	return []any{
		string(t.States[StageSelf]), string(t.States[StageRM]), string(t.States[StageHR]),
		string(t.States[StageHOD]), string(t.States[StageCOO]), string(t.States[StageCEO]),
		t.LastArchivedAt, t.EmployeeID,
	}
}

func (s *Store) UpdateTrack(ctx context.Context, t Track) error {
	tag, err := s.DB.Exec(ctx, updateTrackSQL, trackArgs(t)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrackNotFound
	}
	return nil
}

func (s *Store) GetDetails(ctx context.Context, employeeID string) (Details, error) {
	var d Details
	var rm *string
	err := s.DB.QueryRow(ctx, `
    SELECT employee_id, start_date, end_date, remind_date, weightage, reporting_manager_id
    FROM appraisal_details
    WHERE employee_id = $1
  `, employeeID).Scan(&d.EmployeeID, &d.Cycle.Start, &d.Cycle.End, &d.Cycle.Remind, &d.Weightage, &rm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Details{}, ErrDetailsNotFound
	}
	if err != nil {
		return Details{}, err
	}
	if rm != nil {
		d.ReportingManagerID = *rm
	}
	return d, nil
}

const upsertDetailsSQL = `
    INSERT INTO appraisal_details (employee_id, start_date, end_date, remind_date, weightage, reporting_manager_id)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (employee_id) DO UPDATE
      SET start_date = EXCLUDED.start_date,
          end_date = EXCLUDED.end_date,
          remind_date = EXCLUDED.remind_date,
          weightage = EXCLUDED.weightage,
          reporting_manager_id = EXCLUDED.reporting_manager_id,
          updated_at = now()
  `

func detailsArgs(d Details) []any {
	return []any{d.EmployeeID, d.Cycle.Start, d.Cycle.End, d.Cycle.Remind, d.Weightage, nullIfEmpty(d.ReportingManagerID)}
}

func (s *Store) UpsertDetails(ctx context.Context, d Details) error {
	_, err := s.DB.Exec(ctx, upsertDetailsSQL, detailsArgs(d)...)
	return err
}

// ArchiveEmployee writes the archive row, resets the track and swaps the
// cycle details in one transaction so an employee is either fully archived
// or untouched.
func (s *Store) ArchiveEmployee(ctx context.Context, batch ArchiveBatch) (string, error) {
	rec := batch.Record
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	states, err := json.Marshal(rec.States)
	if err != nil {
		return "", err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	b.Queue(`
    INSERT INTO appraisal_archives
      (id, employee_id, period_start, period_end, weightage, reporting_manager_id, states, status, archived_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, rec.ID, rec.EmployeeID, nullDate(rec.PeriodStart), nullDate(rec.PeriodEnd), rec.Weightage,
		nullIfEmpty(rec.ReportingManagerID), states, string(rec.Status), rec.ArchivedAt)
	b.Queue(updateTrackSQL, trackArgs(batch.Reset)...)
	b.Queue("DELETE FROM appraisal_details WHERE employee_id = $1", rec.EmployeeID)
	if batch.Next != nil {
		b.Queue(upsertDetailsSQL, detailsArgs(*batch.Next)...)
	}

	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return "", fmt.Errorf("archive %s step %d: %w", rec.EmployeeID, i, err)
		}
		if i == 1 && tag.RowsAffected() == 0 {
			_ = br.Close()
			return "", ErrTrackNotFound
		}
	}
	if err := br.Close(); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return rec.ID, nil
}

const archiveColumns = `id, employee_id, period_start, period_end, weightage, COALESCE(reporting_manager_id, ''), states, status, archived_at`

func (s *Store) ListArchives(ctx context.Context, employeeID string) ([]ArchiveRecord, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+archiveColumns+" FROM appraisal_archives WHERE employee_id = $1 ORDER BY archived_at DESC", employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchiveRecord
	for rows.Next() {
		rec, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetArchive(ctx context.Context, archiveID string) (ArchiveRecord, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+archiveColumns+" FROM appraisal_archives WHERE id = $1", archiveID)
	rec, err := scanArchive(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ArchiveRecord{}, ErrArchiveNotFound
	}
	return rec, err
}

func (s *Store) HasMarker(ctx context.Context, employeeID string, c Capability) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM reviewer_markers WHERE employee_id = $1 AND capability = $2)
  `, employeeID, string(c)).Scan(&exists)
	return exists, err
}

func (s *Store) AddMarker(ctx context.Context, employeeID string, c Capability) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO reviewer_markers (employee_id, capability)
    VALUES ($1,$2)
    ON CONFLICT (employee_id, capability) DO NOTHING
  `, employeeID, string(c))
	return err
}

func (s *Store) RemoveMarker(ctx context.Context, employeeID string, c Capability) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM reviewer_markers WHERE employee_id = $1 AND capability = $2", employeeID, string(c))
	return err
}

// ListHolders returns active employees holding c.
func (s *Store) ListHolders(ctx context.Context, c Capability) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT m.employee_id
    FROM reviewer_markers m
    JOIN employees e ON e.id = m.employee_id
    WHERE m.capability = $1 AND e.active = true
    ORDER BY m.employee_id
  `, string(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.Role, &emp.ReportingManagerID, &emp.JoiningDate, &emp.Active)
	return emp, err
}

func scanTrack(row pgx.Row) (Track, error) {
	var t Track
	var raw [stageCount]string
	if err := row.Scan(&t.EmployeeID, &raw[StageSelf], &raw[StageRM], &raw[StageHR], &raw[StageHOD],
		&raw[StageCOO], &raw[StageCEO], &t.LastArchivedAt, &t.UpdatedAt); err != nil {
		return Track{}, err
	}
	for i, v := range raw {
		state := State(v)
		if !state.Valid() {
			return Track{}, fmt.Errorf("track %s: invalid %s state %q", t.EmployeeID, Stage(i), v)
		}
		t.States[i] = state
	}
	return t, nil
}

func scanArchive(row pgx.Row) (ArchiveRecord, error) {
	var rec ArchiveRecord
	var start, end *time.Time
	var states []byte
	var status string
	if err := row.Scan(&rec.ID, &rec.EmployeeID, &start, &end, &rec.Weightage, &rec.ReportingManagerID,
		&states, &status, &rec.ArchivedAt); err != nil {
		return ArchiveRecord{}, err
	}
	if start != nil {
		rec.PeriodStart = *start
	}
	if end != nil {
		rec.PeriodEnd = *end
	}
	rec.Status = Status(status)
	if len(states) > 0 {
		if err := json.Unmarshal(states, &rec.States); err != nil {
			return ArchiveRecord{}, err
		}
	}
	return rec, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
