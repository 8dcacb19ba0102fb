package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/rewriter"
	"ducklint/internal/tokens"
)

// Summary is one journal row without module texts.
type Summary struct {
	SessionID   string          `json:"sessionId" yaml:"sessionId"`
	Kind        string          `json:"kind" yaml:"kind"`
	Status      rewriter.Status `json:"status" yaml:"status"`
	CommittedAt time.Time       `json:"committedAt" yaml:"committedAt"`
	Modules     int             `json:"modules" yaml:"modules"`
	UndoneBy    string          `json:"undoneBy,omitempty" yaml:"undoneBy,omitempty"`
}

// Journal records committed rewrite sessions. It satisfies rewriter.Journal.
type Journal struct {
	db     *DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	retain int
	logger *slog.Logger
}

// NewJournal wraps db. retain bounds how many sessions are kept; 0 keeps all.
func NewJournal(db *DB, retain int, logger *slog.Logger) (*Journal, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &Journal{db: db, enc: enc, dec: dec, retain: retain, logger: logger}, nil
}

// Close releases the codecs. The database stays open.
func (j *Journal) Close() error {
	j.dec.Close()
	return j.enc.Close()
}

// Record stores entry and prunes sessions beyond the retention limit.
func (j *Journal) Record(ctx context.Context, entry rewriter.Entry) error {
	err := j.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, code_kind, status, committed_at, module_count) VALUES (?, ?, ?, ?, ?)`,
			entry.SessionID, entry.Kind.String(), string(entry.Status), entry.CommittedAt.UnixNano(), len(entry.Changes),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		for i, c := range entry.Changes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO changes (session_id, seq, project_id, component, component_type, before_text, after_text, before_size, after_size)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				entry.SessionID, i, c.Module.ProjectID, c.Module.ComponentName, string(c.Module.ComponentType),
				j.enc.EncodeAll([]byte(c.Before), nil), j.enc.EncodeAll([]byte(c.After), nil),
				len(c.Before), len(c.After),
			)
			if err != nil {
				return fmt.Errorf("insert change %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.logger.Debug("Journaled rewrite session", "session", entry.SessionID, "modules", len(entry.Changes))
	return j.prune(ctx)
}

func (j *Journal) prune(ctx context.Context) error {
	if j.retain <= 0 {
		return nil
	}
	res, err := j.db.conn.ExecContext(ctx, `
		DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY committed_at DESC, rowid DESC LIMIT ?
		)`, j.retain)
	if err != nil {
		return fmt.Errorf("prune journal: %w", err)
	}
	if _, err := j.db.conn.ExecContext(ctx, `DELETE FROM changes WHERE session_id NOT IN (SELECT id FROM sessions)`); err != nil {
		return fmt.Errorf("prune journal: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		j.logger.Debug("Pruned journal", "sessions", n)
	}
	return nil
}

// List returns the newest sessions first. limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.conn.QueryContext(ctx, `
		SELECT id, code_kind, status, committed_at, module_count, COALESCE(undone_by, '')
		FROM sessions ORDER BY committed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var status string
		var at int64
		if err := rows.Scan(&s.SessionID, &s.Kind, &status, &at, &s.Modules, &s.UndoneBy); err != nil {
			return nil, err
		}
		s.Status = rewriter.Status(status)
		s.CommittedAt = time.Unix(0, at).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads a session with its module texts.
func (j *Journal) Get(ctx context.Context, id string) (*rewriter.Entry, string, error) {
	var kind, status, undoneBy string
	var at int64
	err := j.db.conn.QueryRowContext(ctx,
		`SELECT code_kind, status, committed_at, COALESCE(undone_by, '') FROM sessions WHERE id = ?`, id,
	).Scan(&kind, &status, &at, &undoneBy)
	if err == sql.ErrNoRows {
		return nil, "", errors.Newf(errors.TargetNotFound, "no journaled session %s", id)
	}
	if err != nil {
		return nil, "", err
	}
	codeKind, err := tokens.ParseCodeKind(kind)
	if err != nil {
		return nil, "", err
	}
	entry := &rewriter.Entry{
		SessionID:   id,
		Kind:        codeKind,
		Status:      rewriter.Status(status),
		CommittedAt: time.Unix(0, at).UTC(),
	}

	rows, err := j.db.conn.QueryContext(ctx, `
		SELECT project_id, component, component_type, before_text, after_text
		FROM changes WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	for rows.Next() {
		var c rewriter.Change
		var ct string
		var before, after []byte
		if err := rows.Scan(&c.Module.ProjectID, &c.Module.ComponentName, &ct, &before, &after); err != nil {
			return nil, "", err
		}
		c.Module.ComponentType = declarations.ComponentType(ct)
		c.Kind = codeKind
		if c.Before, err = j.decode(before); err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", c.Module, err)
		}
		if c.After, err = j.decode(after); err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", c.Module, err)
		}
		entry.Changes = append(entry.Changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	return entry, undoneBy, nil
}

func (j *Journal) decode(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	out, err := j.dec.DecodeAll(blob, nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// MarkUndone records that session id was reverted by session by.
func (j *Journal) MarkUndone(ctx context.Context, id, by string) error {
	_, err := j.db.conn.ExecContext(ctx, `UPDATE sessions SET undone_by = ? WHERE id = ?`, by, id)
	return err
}
