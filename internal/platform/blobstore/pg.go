package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by PGBlobStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGBlobStore keeps images in the portal_image table.
type PGBlobStore struct {
	db DB
}

func NewPGBlobStore(db DB) *PGBlobStore {
	return &PGBlobStore{db: db}
}

func (s *PGBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode image metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO portal_image (key, content_type, size, data, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		meta.ID, meta.ContentType, meta.Size, data, metaJSON, meta.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}

	out := meta
	return &out, nil
}

func (s *PGBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	var data, metaJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT data, metadata FROM portal_image WHERE key = $1`, id,
	).Scan(&data, &metaJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("select image: %w", err)
	}

	var meta BlobMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("decode image metadata: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), &meta, nil
}

func (s *PGBlobStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM portal_image WHERE key = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlobNotFound
	}
	return nil
}

func (s *PGBlobStore) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	var metaJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT metadata FROM portal_image WHERE key = $1`, id,
	).Scan(&metaJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("select image metadata: %w", err)
	}

	var meta BlobMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, fmt.Errorf("decode image metadata: %w", err)
	}
	return &meta, nil
}
