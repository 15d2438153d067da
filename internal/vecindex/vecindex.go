// Package vecindex opens and verifies the forecast service's semantic search
// index artifacts: SQLite files carrying a vec0 virtual table via the
// sqlite-vec extension. recoverd never writes a production index; it
// verifies that a backup artifact is usable before trusting it as a rollback
// target, and test mode corrupts and rebuilds throwaway copies.
package vecindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Index wraps one search index artifact.
type Index struct {
	db         *sql.DB
	dimensions int
}

// Open opens (or creates) an index artifact at path. The dimensions
// parameter is the embedding width the artifact was built with.
func Open(path string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vecindex: dimensions must be positive, got %d", dimensions)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("vecindex: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vecindex: ping %s: %w", path, err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS doc_meta (
		doc_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("vecindex: create meta table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_docs USING vec0(embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("vecindex: create vec table: %w", err)
	}

	return &Index{db: db, dimensions: dimensions}, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Add inserts one document with its embedding. Used to build fixtures and to
// rebuild throwaway copies after a simulated corruption.
func (ix *Index) Add(ctx context.Context, docID, title string, embedding []float32) error {
	if len(embedding) != ix.dimensions {
		return fmt.Errorf("vecindex: embedding has %d dimensions, index expects %d", len(embedding), ix.dimensions)
	}

	_, err := ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO doc_meta (doc_id, title) VALUES (?, ?)`,
		docID, title,
	)
	if err != nil {
		return fmt.Errorf("vecindex: insert meta: %w", err)
	}

	var rowID int64
	err = ix.db.QueryRowContext(ctx,
		`SELECT rowid FROM doc_meta WHERE doc_id = ?`, docID,
	).Scan(&rowID)
	if err != nil {
		return fmt.Errorf("vecindex: get rowid: %w", err)
	}

	serialized, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("vecindex: serialize embedding: %w", err)
	}
	_, err = ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vec_docs (rowid, embedding) VALUES (?, ?)`,
		rowID, serialized,
	)
	if err != nil {
		return fmt.Errorf("vecindex: insert vector: %w", err)
	}
	return nil
}

// Count returns the number of indexed vectors.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_docs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vecindex: count: %w", err)
	}
	return n, nil
}

// SmokeQuery runs one KNN lookup with a zero vector. It proves the vec0
// table is structurally intact and answerable, which a byte-corrupted
// artifact is not.
func (ix *Index) SmokeQuery(ctx context.Context) error {
	query := make([]float32, ix.dimensions)
	serialized, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return fmt.Errorf("vecindex: serialize query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT rowid, distance FROM vec_docs WHERE embedding MATCH ? ORDER BY distance LIMIT 1`,
		serialized,
	)
	if err != nil {
		return fmt.Errorf("vecindex: smoke query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rowID int64
		var distance float64
		if err := rows.Scan(&rowID, &distance); err != nil {
			return fmt.Errorf("vecindex: scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("vecindex: smoke query rows: %w", err)
	}
	return nil
}

// Verify checks that the artifact at path exists, opens, holds at least one
// vector and answers a KNN query. This is the integrity gate pre-validation
// applies to a rollback target's index snapshot.
func Verify(ctx context.Context, path string, dimensions int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("vecindex: artifact missing: %w", err)
	}

	// Reject files that are not SQLite at all before the driver touches
	// them; a truncated or overwritten artifact fails here.
	header := make([]byte, 16)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vecindex: open artifact: %w", err)
	}
	n, _ := f.Read(header)
	f.Close()
	if n < 16 || string(header[:15]) != "SQLite format 3" {
		return fmt.Errorf("vecindex: %s is not a sqlite artifact", path)
	}

	ix, err := Open(path, dimensions)
	if err != nil {
		return err
	}
	defer ix.Close()

	count, err := ix.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("vecindex: %s holds no vectors", path)
	}
	return ix.SmokeQuery(ctx)
}
