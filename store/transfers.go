package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/udisondev/courier/wire"
)

// BeginTransfer records a new transfer in StatusSending and returns its id.
func (s *Store) BeginTransfer(ctx context.Context, clientID wire.ClientID, fileName string, size int64, checksum uint32) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (client_id, file_name, file_size, checksum, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, hex.EncodeToString(clientID[:]), fileName, size, checksum, StatusSending, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}
	return res.LastInsertId()
}

// RecordAttempt stores the outcome of one send: the attempt number and the
// checksum the server reported.
func (s *Store) RecordAttempt(ctx context.Context, id int64, attempt int, remote uint32) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transfers SET attempts = ?, remote_checksum = ?
		WHERE id = ?
	`, attempt, remote, id)
	return err
}

func (s *Store) FinishTransfer(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transfers SET status = ?, finished_at = ?
		WHERE id = ?
	`, status, time.Now().Unix(), id)
	return err
}

// Transfers returns up to limit transfers, newest first.
func (s *Store) Transfers(ctx context.Context, limit int) ([]Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, file_name, file_size, checksum, remote_checksum, attempts, status, started_at, finished_at
		FROM transfers
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		var hexID string
		var startedAt int64
		var finishedAt sql.NullInt64
		if err := rows.Scan(&t.ID, &hexID, &t.FileName, &t.FileSize, &t.Checksum, &t.RemoteChecksum,
			&t.Attempts, &t.Status, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		if t.ClientID, err = parseID(hexID); err != nil {
			return nil, err
		}
		t.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			ft := time.Unix(finishedAt.Int64, 0)
			t.FinishedAt = &ft
		}
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}
