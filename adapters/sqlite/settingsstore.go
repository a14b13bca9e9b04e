package sqlite

import (
	"context"

	"github.com/msmafra/sogeBot/domain/setting"
	"github.com/msmafra/sogeBot/ports"
)

// SettingsStore implements ports.SettingsStore using SQLite.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Find retrieves a single record by (namespace, name).
func (s *SettingsStore) Find(ctx context.Context, namespace, name string) (setting.Record, bool, error) {
	rec := setting.Record{Namespace: namespace, Name: name}

	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM settings WHERE namespace = ? AND name = ?`,
		namespace, name,
	)
	if err != nil {
		return setting.Record{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return setting.Record{}, false, rows.Err()
	}
	if err := rows.Scan(&rec.Value); err != nil {
		return setting.Record{}, false, err
	}
	return rec, true, nil
}

// FindAll retrieves every record in a namespace, ordered by name.
func (s *SettingsStore) FindAll(ctx context.Context, namespace string) ([]setting.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM settings WHERE namespace = ? ORDER BY name`,
		namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []setting.Record
	for rows.Next() {
		rec := setting.Record{Namespace: namespace}
		if err := rows.Scan(&rec.Name, &rec.Value); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Put creates or replaces a record.
func (s *SettingsStore) Put(ctx context.Context, rec setting.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (namespace, name, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace, name) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		rec.Namespace, rec.Name, rec.Value,
	)
	return err
}

// Delete removes a record. Absent records are ignored.
func (s *SettingsStore) Delete(ctx context.Context, namespace, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE namespace = ? AND name = ?`,
		namespace, name,
	)
	return err
}

var _ ports.SettingsStore = (*SettingsStore)(nil)
