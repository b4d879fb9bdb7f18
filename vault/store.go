package vault

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	vault_id TEXT NOT NULL,
	kdf TEXT NOT NULL,
	cost INTEGER NOT NULL,
	salt BLOB NOT NULL,
	verifier BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE entries (
	name TEXT NOT NULL PRIMARY KEY,
	ciphertext BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

const (
	metaInsertSQL = `INSERT INTO meta (id, version, vault_id, kdf, cost, salt, verifier, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`
	metaSelectSQL = `SELECT version, vault_id, kdf, cost, salt, verifier, created_at FROM meta WHERE id = 1`
	tablesSQL     = `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('meta', 'entries')`

	entryInsertSQL = `INSERT INTO entries (name, ciphertext, created_at, updated_at) VALUES (?, ?, ?, ?)`
	entryUpsertSQL = entryInsertSQL + `
		ON CONFLICT(name) DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`
	entrySelectSQL = `SELECT name, ciphertext, created_at, updated_at FROM entries WHERE name = ?`
	entryDeleteSQL = `DELETE FROM entries WHERE name = ?`
	entryNamesSQL  = `SELECT name FROM entries ORDER BY name`
)

// Store is the on-disk half of a vault: one SQLite file holding the meta
// record and the entries table. It is the only type that touches the file.
type Store struct {
	path string
	db   *sql.DB
	meta Meta
}

// uriEscaper keeps SQLite from reading parts of a file name as URI syntax.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func dsn(path, mode string) string {
	return "file:" + uriEscaper.Replace(filepath.ToSlash(path)) + "?mode=" + mode +
		"&_locking_mode=EXCLUSIVE&_sync=FULL&_secure_delete=on"
}

func openDB(path, mode string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path, mode))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// CreateStore creates a new vault file at path and writes its meta record.
// Nothing may exist at path beforehand.
func CreateStore(path string, m Meta) (*Store, error) {
	if err := m.validate(); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "%s", path)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	db, err := openDB(path, "rwc")
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	s := &Store{path: path, db: db, meta: m}

	err = s.update(func(tx *sql.Tx) error {
		if _, err := tx.Exec(schema); err != nil {
			return errors.Wrap(err, "create schema")
		}
		_, err := tx.Exec(metaInsertSQL, m.Version, m.VaultID, m.KDF, m.Cost,
			m.Salt, m.Verifier, m.CreatedAt.UTC())
		return errors.Wrap(err, "write meta")
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}
	log.Debugf("Created vault store %s", path)
	return s, nil
}

// OpenStore opens an existing vault file. The file is never created here.
func OpenStore(path string) (*Store, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "no vault at %s", path)
	} else if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if fi.IsDir() {
		return nil, errors.Wrapf(ErrCorrupt, "%s is a directory", path)
	}

	db, err := openDB(path, "rw")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	s := &Store{path: path, db: db}
	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened vault store %s (vault %s)", path, s.meta.VaultID)
	return s, nil
}

func (s *Store) loadMeta() error {
	var tables int
	if err := s.db.QueryRow(tablesSQL).Scan(&tables); err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %v", s.path, err)
	}
	if tables != 2 {
		return errors.Wrapf(ErrCorrupt, "%s: missing tables", s.path)
	}

	var m Meta
	err := s.db.QueryRow(metaSelectSQL).Scan(&m.Version, &m.VaultID, &m.KDF,
		&m.Cost, &m.Salt, &m.Verifier, &m.CreatedAt)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: read meta: %v", s.path, err)
	}
	if err := m.validate(); err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %v", s.path, err)
	}
	s.meta = m
	return nil
}

// update runs fn in a transaction that is committed before returning, or
// rolled back if fn fails.
func (s *Store) update(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *Store) Path() string {
	return s.path
}

// Meta returns the salt, verifier and cost the vault was created with.
func (s *Store) Meta() Meta {
	return s.meta
}

// PutEntry inserts blob under name. An existing name fails with
// ErrAlreadyExists unless overwrite is set, in which case it is replaced.
func (s *Store) PutEntry(name string, blob []byte, overwrite bool) error {
	if name == "" {
		return errors.Wrap(ErrInvalidConfig, "empty entry name")
	}
	if len(blob) == 0 {
		return errors.Wrap(ErrInvalidConfig, "empty ciphertext")
	}

	query := entryInsertSQL
	if overwrite {
		query = entryUpsertSQL
	}
	now := time.Now().UTC()
	err := s.update(func(tx *sql.Tx) error {
		_, err := tx.Exec(query, name, blob, now, now)
		return err
	})
	if isUniqueViolation(err) {
		return errors.Wrapf(ErrAlreadyExists, "entry %q", name)
	}
	return errors.Wrapf(err, "put entry %q", name)
}

// GetEntry returns the stored row for name.
func (s *Store) GetEntry(name string) (*Entry, error) {
	e := &Entry{}
	err := s.db.QueryRow(entrySelectSQL, name).Scan(&e.Name, &e.Ciphertext,
		&e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "entry %q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get entry %q", name)
	}
	return e, nil
}

// DeleteEntry removes name and nothing else.
func (s *Store) DeleteEntry(name string) error {
	return s.update(func(tx *sql.Tx) error {
		res, err := tx.Exec(entryDeleteSQL, name)
		if err != nil {
			return errors.Wrapf(err, "delete entry %q", name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrapf(err, "delete entry %q", name)
		}
		if n == 0 {
			return errors.Wrapf(ErrNotFound, "entry %q", name)
		}
		return nil
	})
}

// ListNames returns every entry name in byte order.
func (s *Store) ListNames() ([]string, error) {
	rows, err := s.db.Query(entryNamesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list entries")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "list entries")
		}
		names = append(names, name)
	}
	return names, errors.Wrap(rows.Err(), "list entries")
}

// Close releases the file and its lock.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
