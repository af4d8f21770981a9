package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetnav/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in name order.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.migrateFS(ctx, migrations, "migrations")
}

func (p *Postgres) migrateFS(ctx context.Context, fsys fs.FS, dir string) error {
	names, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) SaveRun(ctx context.Context, run model.DispatchRun) (model.DispatchRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	created, err := time.Parse(time.RFC3339Nano, run.CreatedAt)
	if err != nil {
		return model.DispatchRun{}, fmt.Errorf("createdAt: %w", err)
	}
	body, err := json.Marshal(run)
	if err != nil {
		return model.DispatchRun{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO dispatch_runs (id, created_at, policy, total_cost, body) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET policy=EXCLUDED.policy, total_cost=EXCLUDED.total_cost, body=EXCLUDED.body`,
		run.ID, created, run.Policy, run.TotalCost, body)
	if err != nil {
		return model.DispatchRun{}, err
	}
	return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.DispatchRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.DispatchRun{}, ErrNotFound
	}
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM dispatch_runs WHERE id=$1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DispatchRun{}, ErrNotFound
	}
	if err != nil {
		return model.DispatchRun{}, err
	}
	return decodeRun(body)
}

// ListRuns pages by insertion sequence; the cursor is the id of the last run seen.
func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.DispatchRun, string, error) {
	limit = clampLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		seq, serr := p.cursorSeq(ctx, cursor)
		if serr != nil {
			return nil, "", serr
		}
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, body FROM dispatch_runs WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, body FROM dispatch_runs ORDER BY seq LIMIT $1`, limit+1)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.DispatchRun{}
	more := false
	for rows.Next() {
		if len(out) == limit {
			more = true
			break
		}
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, "", err
		}
		r, err := decodeRun(body)
		if err != nil {
			return nil, "", fmt.Errorf("run %s: %w", id, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if more {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) cursorSeq(ctx context.Context, cursor string) (int64, error) {
	if _, err := uuid.Parse(cursor); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadCursor, cursor)
	}
	var seq int64
	err := p.db.QueryRowContext(ctx, `SELECT seq FROM dispatch_runs WHERE id=$1`, cursor).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrBadCursor, cursor)
	}
	return seq, err
}

func decodeRun(body []byte) (model.DispatchRun, error) {
	var r model.DispatchRun
	if err := json.Unmarshal(body, &r); err != nil {
		return model.DispatchRun{}, err
	}
	return r, nil
}
