package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"
)

// legacyStats is the stats.json written before the SQLite store existed.
// The oldest format only carried a running count.
type legacyStats struct {
	History []string `json:"history"`
	Offset  *int     `json:"offset"`
	Count   *int     `json:"count"`
}

// ImportResult reports what ImportLegacy did.
type ImportResult struct {
	Found          bool
	Imported       int
	Offset         int
	SkippedHistory bool
	BackupPath     string
}

// ImportLegacy migrates a stats.json file into the store. The offset is always
// applied; history is only inserted into an empty log so a repeated import
// cannot duplicate rows. On success the file is renamed to path + ".bak".
// A missing file is not an error.
func (s *Store) ImportLegacy(ctx context.Context, path string) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ImportResult{}, nil
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("read legacy stats: %w", err)
	}

	var ls legacyStats
	if err := json.Unmarshal(data, &ls); err != nil {
		return ImportResult{}, fmt.Errorf("decode legacy stats: %w", err)
	}

	res := ImportResult{Found: true}
	switch {
	case ls.Offset != nil:
		res.Offset = *ls.Offset
	case ls.Count != nil && ls.History == nil:
		res.Offset = *ls.Count
	}

	// Parse everything before writing anything.
	history := make([]time.Time, 0, len(ls.History))
	for _, raw := range ls.History {
		t, err := ParseTimestamp(raw)
		if err != nil {
			return ImportResult{}, fmt.Errorf("legacy history: %w", err)
		}
		history = append(history, t)
	}

	if err := s.SetOffset(ctx, res.Offset); err != nil {
		return ImportResult{}, err
	}

	n, err := s.Count(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	if n > 0 {
		log.Printf("store: log not empty (%d rows), skipping legacy history", n)
		res.SkippedHistory = true
	} else if err := s.insertAll(ctx, history); err != nil {
		return ImportResult{}, err
	} else {
		res.Imported = len(history)
	}

	res.BackupPath = path + ".bak"
	if err := os.Rename(path, res.BackupPath); err != nil {
		return res, fmt.Errorf("rename legacy stats: %w", err)
	}
	return res, nil
}

func (s *Store) insertAll(ctx context.Context, history []time.Time) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range history {
		if _, err = tx.ExecContext(ctx, `INSERT INTO logs (timestamp) VALUES (?)`, formatTimestamp(t)); err != nil {
			return fmt.Errorf("import log: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
