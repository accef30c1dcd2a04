package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/id"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	format TEXT NOT NULL,
	blob_key TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	format TEXT NOT NULL,
	blob_key TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

const (
	sqliteBusyTimeoutMS = 5000
	sqliteMaxOpenConns  = 1
)

// SQLImageStore keeps image metadata in a SQL table and the image bytes in a
// BlobStore. The blob is written before its row, so a visible row always
// references a stored blob.
type SQLImageStore struct {
	db      *sql.DB
	dialect Dialect
	blobs   BlobStore
	now     func() time.Time
}

func NewPostgresImageStore(ctx context.Context, dsn string, blobs BlobStore) (*SQLImageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newSQLImageStore(ctx, db, DialectPostgres, blobs)
}

func NewSQLiteImageStore(ctx context.Context, path string, blobs BlobStore) (*SQLImageStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	dsn := url.URL{Scheme: "file", Path: abs}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", sqliteBusyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	db.SetMaxOpenConns(sqliteMaxOpenConns)
	db.SetMaxIdleConns(sqliteMaxOpenConns)

	return newSQLImageStore(ctx, db, DialectSQLite, blobs)
}

func newSQLImageStore(ctx context.Context, db *sql.DB, dialect Dialect, blobs BlobStore) (*SQLImageStore, error) {
	if blobs == nil {
		_ = db.Close()
		return nil, errors.New("blob store is required")
	}

	store := &SQLImageStore{
		db:      db,
		dialect: dialect,
		blobs:   blobs,
		now:     time.Now,
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLImageStore) EnsureSchema(ctx context.Context) error {
	schema := postgresSchemaSQL
	if s.dialect == DialectSQLite {
		schema = sqliteSchemaSQL
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure images schema: %w", err)
	}
	return nil
}

func (s *SQLImageStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLImageStore) Close() error {
	return s.db.Close()
}

func (s *SQLImageStore) Create(ctx context.Context, name string, format domain.Format, blob []byte) (string, error) {
	contentType, err := domain.ContentTypeFromFormat(format)
	if err != nil {
		return "", err
	}

	imageID := id.New()
	key := blobKey(imageID, format)
	if err := s.blobs.WriteObject(ctx, key, blob, contentType); err != nil {
		return "", unavailable("write blob", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		s.rebind(`INSERT INTO images (id, name, format, blob_key, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`),
		imageID,
		name,
		string(format),
		key,
		int64(len(blob)),
		s.now().UTC(),
	)
	if err != nil {
		return "", unavailable("insert image", err)
	}

	return imageID, nil
}

func (s *SQLImageStore) Get(ctx context.Context, imageID string) (domain.StoredImage, error) {
	if !id.Valid(imageID) {
		return domain.StoredImage{}, invalidID(imageID)
	}

	row := s.db.QueryRowContext(
		ctx,
		s.rebind(`SELECT name, format, blob_key
		 FROM images
		 WHERE id = $1`),
		imageID,
	)

	var name, format, key string
	if err := row.Scan(&name, &format, &key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredImage{}, notFound(imageID)
		}
		return domain.StoredImage{}, unavailable("query image", err)
	}

	blob, err := s.blobs.ReadObject(ctx, key)
	if err != nil {
		return domain.StoredImage{}, unavailable("read blob", err)
	}

	return domain.NewStoredImage(imageID, name, domain.Format(format), blob)
}

// rebind rewrites $N placeholders for drivers that only take "?".
func (s *SQLImageStore) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}
