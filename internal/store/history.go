// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/searchbench/internal/benchmark"
)

const (
	runPrefix = "run/"
	idPrefix  = "id/"
)

var (
	// ErrNotFound indicates that no stored run matches the id.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguousID indicates an id prefix matching several runs.
	ErrAmbiguousID = errors.New("run id prefix is ambiguous")

	// ErrInvalidReport indicates a report that cannot be stored.
	ErrInvalidReport = errors.New("invalid report")
)

func runKey(r *benchmark.Report) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, r.StartedAt.UnixNano(), r.RunID))
}

func idKey(id string) []byte {
	return []byte(idPrefix + id)
}

// Save stores the report, replacing any earlier report with the same id.
//
// Outputs:
//   - error: ErrInvalidReport if the report has no RunID.
func (s *Store) Save(ctx context.Context, report *benchmark.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("%w: missing run id", ErrInvalidReport)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report %s: %w", report.RunID, err)
	}

	key := runKey(report)
	err = s.db.Update(func(txn *badger.Txn) error {
		previous, err := lookupRunKey(txn, report.RunID)
		switch {
		case err == nil:
			if err := txn.Delete(previous); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idKey(report.RunID), key)
	})
	if err != nil {
		return fmt.Errorf("saving report %s: %w", report.RunID, err)
	}

	s.logger.Debug("report saved",
		slog.String("run_id", report.RunID),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Get loads a report by full id or unique id prefix.
//
// Outputs:
//   - error: ErrNotFound if nothing matches, ErrAmbiguousID if a prefix
//     matches more than one run.
func (s *Store) Get(ctx context.Context, id string) (*benchmark.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var report *benchmark.Report
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := resolveRunKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		report, err = decodeItem(item)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return report, nil
}

// List returns up to limit reports, newest first. A limit of zero or
// less returns every report.
func (s *Store) List(ctx context.Context, limit int) ([]*benchmark.Report, error) {
	var reports []*benchmark.Report
	prefix := []byte(runPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append([]byte(runPrefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := decodeItem(it.Item())
			if err != nil {
				s.logger.Warn("skipping corrupt history entry",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			reports = append(reports, report)
			if limit > 0 && len(reports) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return reports, nil
}

// Delete removes a run by full id or unique id prefix.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		key, err := resolveRunKey(txn, id)
		if err != nil {
			return err
		}
		fullID := key[strings.LastIndexByte(string(key), '/')+1:]
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(string(fullID)))
	})
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	prefix := []byte(idPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// lookupRunKey returns the run key stored for an exact id.
func lookupRunKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// resolveRunKey accepts an exact id or a unique prefix of one.
func resolveRunKey(txn *badger.Txn, id string) ([]byte, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	key, err := lookupRunKey(txn, id)
	if !errors.Is(err, ErrNotFound) {
		return key, err
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := idKey(id)
	var match []byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if match != nil {
			return nil, ErrAmbiguousID
		}
		match, err = it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

func decodeItem(item *badger.Item) (*benchmark.Report, error) {
	var report benchmark.Report
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &report)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", item.Key(), err)
	}
	return &report, nil
}
