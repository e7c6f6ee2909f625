package mcqstudio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Sink receives finished artifacts. Saving, downloading or archiving is up
// to the implementation.
type Sink interface {
	Deliver(ctx context.Context, a *Artifact) error
}

// DirSink writes artifacts into a directory under their suggested filename
type DirSink struct {
	Dir string
}

// Deliver writes the artifact to Dir/Filename
func (s DirSink) Deliver(ctx context.Context, a *Artifact) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(s.Dir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	Logger().Info("export written", "path", path, "bytes", len(a.Data))
	return nil
}

// Archive keeps a log of delivered exports in sqlite. Only finished
// artifacts are stored; review sessions are never persisted.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// ArchivedExport is a row of the exports table
type ArchivedExport struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int       `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	Data        []byte    `json:"-"`
}

// OpenArchive opens the sqlite database at dbPath and creates its table
func OpenArchive(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Archive{db: db, now: time.Now}
	if err := a.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the database connection
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables() error {
	query := `CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		format TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at DATETIME NOT NULL
	)`
	if _, err := a.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create exports table: %w", err)
	}
	return nil
}

// Deliver stores the artifact
func (a *Archive) Deliver(ctx context.Context, art *Artifact) error {
	_, err := a.Save(ctx, art)
	return err
}

// Save stores the artifact and returns its row id
func (a *Archive) Save(ctx context.Context, art *Artifact) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		"INSERT INTO exports (filename, format, content_type, size_bytes, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		art.Filename, string(art.Format), art.ContentType, len(art.Data), art.Data, a.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive export: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read export id: %w", err)
	}
	VerboseLog("export archived", "id", id, "filename", art.Filename)
	return id, nil
}

// Get retrieves an archived export including its bytes
func (a *Archive) Get(ctx context.Context, id int64) (*ArchivedExport, error) {
	var e ArchivedExport
	var format string
	err := a.db.QueryRowContext(ctx,
		"SELECT id, filename, format, content_type, size_bytes, data, created_at FROM exports WHERE id = ?",
		id,
	).Scan(&e.ID, &e.Filename, &format, &e.ContentType, &e.SizeBytes, &e.Data, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(CodeNotFound, "get export", "export %d does not exist", id)
		}
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	e.Format = Format(format)
	return &e, nil
}

// List returns archived exports newest first, without their bytes
func (a *Archive) List(ctx context.Context, limit int) ([]ArchivedExport, error) {
	query := "SELECT id, filename, format, content_type, size_bytes, created_at FROM exports ORDER BY id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var exports []ArchivedExport
	for rows.Next() {
		var e ArchivedExport
		var format string
		if err := rows.Scan(&e.ID, &e.Filename, &format, &e.ContentType, &e.SizeBytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		e.Format = Format(format)
		exports = append(exports, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}
	return exports, nil
}
