// Package sqlite persists a vector index as a single SQLite database inside
// the index directory. Searches run against an in-memory copy loaded at open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

// FileName is the database file inside the index directory.
const FileName = "index.db"

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE units (
	id            INTEGER PRIMARY KEY,
	position_kind TEXT    NOT NULL,
	position      INTEGER NOT NULL,
	content       TEXT    NOT NULL,
	vector        BLOB    NOT NULL
);`

var (
	_ vectorstore.Backend = Backend{}
	_ vectorstore.Store   = (*Store)(nil)
)

// Backend creates and opens SQLite-backed stores.
type Backend struct{}

func (Backend) Name() string { return "sqlite" }

// Create initialises index.db in dir. The default rollback journal is used
// so a closed database is a single self-contained file.
func (Backend) Create(ctx context.Context, dir string, meta vectorstore.Meta) (vectorstore.Store, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("index database already exists: %s", path)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	kv := map[string]string{
		"identifier": meta.Identifier,
		"embedder":   meta.Embedder,
		"dimension":  strconv.Itoa(meta.Dimension),
	}
	for k, v := range kv {
		if _, err := db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			db.Close()
			return nil, fmt.Errorf("writing meta: %w", err)
		}
	}
	return &Store{db: db, meta: meta, mem: memory.NewStorage(meta)}, nil
}

// Open reopens index.db in dir and loads every record into memory.
func (Backend) Open(ctx context.Context, dir string) (vectorstore.Store, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Store is an index persisted in SQLite.
type Store struct {
	db   *sql.DB
	meta vectorstore.Meta
	mem  *memory.Storage
}

func (s *Store) Meta() vectorstore.Meta { return s.meta }

// Add writes units and vectors in one transaction, then makes them searchable.
func (s *Store) Add(ctx context.Context, units []domain.TextUnit, vectors [][]float64) error {
	if len(units) != len(vectors) {
		return errors.New("units and vectors length mismatch")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO units (position_kind, position, content, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, u := range units {
		if _, err := stmt.ExecContext(ctx,
			u.Position.Kind().String(), u.Position.Index(), u.Content, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert unit %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return s.mem.Add(ctx, units, vectors)
}

func (s *Store) Search(ctx context.Context, vector []float64, k int) ([]vectorstore.Hit, error) {
	return s.mem.Search(ctx, vector, k)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.mem.Count(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return fmt.Errorf("scanning meta: %w", err)
		}
		switch k {
		case "identifier":
			s.meta.Identifier = v
		case "embedder":
			s.meta.Embedder = v
		case "dimension":
			s.meta.Dimension, _ = strconv.Atoi(v)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	s.mem = memory.NewStorage(s.meta)
	rows, err = s.db.QueryContext(ctx, `SELECT position_kind, position, content, vector FROM units ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading units: %w", err)
	}
	defer rows.Close()
	var (
		units   []domain.TextUnit
		vectors [][]float64
	)
	for rows.Next() {
		var (
			kind    string
			pos     int
			content string
			blob    []byte
		)
		if err := rows.Scan(&kind, &pos, &content, &blob); err != nil {
			return fmt.Errorf("scanning unit: %w", err)
		}
		pk, err := domain.ParsePositionKind(kind)
		if err != nil {
			return err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return err
		}
		units = append(units, domain.TextUnit{Content: content, Position: domain.NewPosition(pk, pos)})
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.mem.Add(ctx, units, vectors)
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
