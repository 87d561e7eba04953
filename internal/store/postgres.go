package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/lib/pq"
)

// Postgres is the shared-database gateway for multi-node deployments.
// Snapshots are stored as JSONB rows keyed like the badger layout, with
// the version pulled into a column for the idempotence guard.
type Postgres struct {
	db *sql.DB
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS dc_matches (
	session_id TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	data       JSONB  NOT NULL
);
CREATE TABLE IF NOT EXISTS dc_games (
	session_id  TEXT   NOT NULL,
	game_number INT    NOT NULL,
	version     BIGINT NOT NULL,
	data        JSONB  NOT NULL,
	PRIMARY KEY (session_id, game_number)
);
CREATE TABLE IF NOT EXISTS dc_results (
	session_id  TEXT  NOT NULL,
	game_number INT   NOT NULL,
	data        JSONB NOT NULL,
	PRIMARY KEY (session_id, game_number)
);`

// OpenPostgres connects, verifies the connection and ensures the
// schema exists.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(pgSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// SaveGame upserts a game checkpoint; older versions lose.
func (p *Postgres) SaveGame(ctx context.Context, snap GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO dc_games (session_id, game_number, version, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, game_number) DO UPDATE
		SET version = EXCLUDED.version, data = EXCLUDED.data
		WHERE dc_games.version <= EXCLUDED.version`,
		snap.SessionID, snap.GameNumber, snap.Version, data)
	return err
}

// SaveMatch upserts the match checkpoint; older versions lose.
func (p *Postgres) SaveMatch(ctx context.Context, snap MatchSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO dc_matches (session_id, version, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE
		SET version = EXCLUDED.version, data = EXCLUDED.data
		WHERE dc_matches.version <= EXCLUDED.version`,
		snap.SessionID, snap.Version, data)
	return err
}

// LoadGame returns a stored game checkpoint.
func (p *Postgres) LoadGame(ctx context.Context, sessionID string, gameNumber int) (GameSnapshot, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM dc_games WHERE session_id = $1 AND game_number = $2`,
		sessionID, gameNumber).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return GameSnapshot{}, ErrNotFound
	}
	if err != nil {
		return GameSnapshot{}, err
	}
	var snap GameSnapshot
	err = json.Unmarshal(raw, &snap)
	return snap, err
}

// LoadMatch returns the stored match checkpoint.
func (p *Postgres) LoadMatch(ctx context.Context, sessionID string) (MatchSnapshot, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM dc_matches WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return MatchSnapshot{}, ErrNotFound
	}
	if err != nil {
		return MatchSnapshot{}, err
	}
	var snap MatchSnapshot
	err = json.Unmarshal(raw, &snap)
	return snap, err
}

// AppendResult records one settled game; replays are ignored.
func (p *Postgres) AppendResult(ctx context.Context, rec ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO dc_results (session_id, game_number, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, game_number) DO NOTHING`,
		rec.SessionID, rec.GameNumber, data)
	return err
}

// Results returns the settled games of a session in game order.
func (p *Postgres) Results(ctx context.Context, sessionID string) ([]ResultRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT data FROM dc_results WHERE session_id = $1 ORDER BY game_number`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec ResultRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
