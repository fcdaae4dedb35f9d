package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type archivePG struct {
	pool *pgxpool.Pool
}

// NewPGArchive stores completed consultations in consultation_archive.
func NewPGArchive(pool *pgxpool.Pool) Archive {
	return &archivePG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (a *archivePG) conn() querier {
	return a.pool
}

const archiveCols = `id, record`

func (a *archivePG) Append(ctx context.Context, rec *ArchivedConsultation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}
	_, err = a.conn().Exec(ctx, `
		INSERT INTO consultation_archive (
			id, session_id, patient_name, primary_diagnosis, final_diagnosis, completed_at, record
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.SessionID, rec.Patient.Name, rec.PrimaryDiagnosis, rec.FinalDiagnosis,
		rec.CompletedAt, doc,
	)
	return err
}

func (a *archivePG) Get(ctx context.Context, id uuid.UUID) (*ArchivedConsultation, error) {
	rec, err := scanArchive(a.conn().QueryRow(ctx, `SELECT `+archiveCols+` FROM consultation_archive WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (a *archivePG) List(ctx context.Context, limit, offset int) ([]*ArchivedConsultation, int, error) {
	var total int
	if err := a.conn().QueryRow(ctx, `SELECT COUNT(*) FROM consultation_archive`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := a.conn().Query(ctx, `SELECT `+archiveCols+` FROM consultation_archive
		ORDER BY completed_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ArchivedConsultation
	for rows.Next() {
		rec, err := scanArchive(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func scanArchive(row pgx.Row) (*ArchivedConsultation, error) {
	var (
		id  uuid.UUID
		doc []byte
	)
	if err := row.Scan(&id, &doc); err != nil {
		return nil, err
	}
	var rec ArchivedConsultation
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode archive record %s: %w", id, err)
	}
	rec.ID = id
	return &rec, nil
}
