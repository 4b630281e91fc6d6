// Package store keeps local client state in SQLite: the last directory
// roster received from the server and the history of file transfers.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/udisondev/courier/wire"
)

// Transfer statuses.
const (
	StatusSending = "sending"
	StatusDone    = "done"
	StatusAborted = "aborted"
	StatusFailed  = "failed"
)

// Store manages the local database.
type Store struct {
	db *sql.DB
}

// Peer is a cached roster entry.
type Peer struct {
	ID        wire.ClientID
	Username  string
	PublicKey []byte
	UpdatedAt time.Time
}

// Transfer is one run's delivery of a file.
type Transfer struct {
	ID             int64
	ClientID       wire.ClientID
	FileName       string
	FileSize       int64
	Checksum       uint32
	RemoteChecksum uint32
	Attempts       int
	Status         string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS peers (
		client_id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		public_key BLOB,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		checksum INTEGER NOT NULL,
		remote_checksum INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_started
	ON transfers(started_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplacePeers swaps the cached roster for peers in one transaction. Known
// public keys of peers that are still listed are kept.
func (s *Store) ReplacePeers(ctx context.Context, peers []Peer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keys := make(map[string][]byte)
	rows, err := tx.QueryContext(ctx, `SELECT client_id, public_key FROM peers WHERE public_key IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("read cached keys: %w", err)
	}
	for rows.Next() {
		var id string
		var key []byte
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return err
		}
		keys[id] = key
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM peers`); err != nil {
		return fmt.Errorf("clear peers: %w", err)
	}

	now := time.Now().Unix()
	for _, p := range peers {
		hexID := hex.EncodeToString(p.ID[:])
		key := p.PublicKey
		if key == nil {
			key = keys[hexID]
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO peers (client_id, username, public_key, updated_at)
			VALUES (?, ?, ?, ?)
		`, hexID, p.Username, key, now); err != nil {
			return fmt.Errorf("insert peer %s: %w", p.Username, err)
		}
	}

	return tx.Commit()
}

func (s *Store) SetPeerPublicKey(ctx context.Context, id wire.ClientID, key []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE peers SET public_key = ?, updated_at = ?
		WHERE client_id = ?
	`, key, time.Now().Unix(), hex.EncodeToString(id[:]))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("peer %s not cached", id)
	}
	return nil
}

// Peers returns the cached roster ordered by username.
func (s *Store) Peers(ctx context.Context) ([]Peer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, username, public_key, updated_at
		FROM peers
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		var p Peer
		var hexID string
		var updatedAt int64
		if err := rows.Scan(&hexID, &p.Username, &p.PublicKey, &updatedAt); err != nil {
			return nil, err
		}
		if p.ID, err = parseID(hexID); err != nil {
			return nil, err
		}
		p.UpdatedAt = time.Unix(updatedAt, 0)
		peers = append(peers, p)
	}

	return peers, rows.Err()
}

func parseID(hexID string) (wire.ClientID, error) {
	var id wire.ClientID
	b, err := hex.DecodeString(hexID)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("corrupt client id %q", hexID)
	}
	copy(id[:], b)
	return id, nil
}
