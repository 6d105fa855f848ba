package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/firmasegura/certifications-backend/pkg/config"
	"github.com/firmasegura/certifications-backend/pkg/logger"
	"github.com/firmasegura/certifications-backend/pkg/storage/gcs"
	"github.com/firmasegura/certifications-backend/pkg/storage/local"
)

// ErrNotFound is returned by Get when the reference points at nothing.
var ErrNotFound = errors.New("object not found")

// ObjectStore keeps attachment blobs. References returned by Put are opaque to callers.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) (bool, error)
	Ping(ctx context.Context) error
}

// New builds the object store selected by cfg.Storage.Driver.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (ObjectStore, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case config.StorageDriverLocal:
		store, err := local.NewStore(cfg.Storage.LocalDir)
		if err != nil {
			return nil, err
		}
		if logg != nil {
			logg.Info(ctx, "local object store initialized")
		}
		return NewLocal(store), nil
	case config.StorageDriverGCS, "":
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return nil, err
		}
		return NewGCS(client), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

type gcsClient interface {
	Upload(ctx context.Context, object, contentType string, data []byte) error
	Download(ctx context.Context, object string) (io.ReadCloser, error)
	Delete(ctx context.Context, object string) (bool, error)
	Ping(ctx context.Context) error
}

type gcsStore struct {
	client gcsClient
}

// NewGCS adapts a Cloud Storage client bound to one bucket.
func NewGCS(client gcsClient) ObjectStore {
	return &gcsStore{client: client}
}

func (s *gcsStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.client.Upload(ctx, key, contentType, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *gcsStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := s.client.Download(ctx, ref)
	if errors.Is(err, gcs.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	return rc, err
}

func (s *gcsStore) Delete(ctx context.Context, ref string) (bool, error) {
	return s.client.Delete(ctx, ref)
}

func (s *gcsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

type localStore struct {
	store *local.Store
}

// NewLocal adapts a directory-backed store.
func NewLocal(store *local.Store) ObjectStore {
	return &localStore{store: store}
}

func (s *localStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := s.store.Write(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *localStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := s.store.Open(ctx, ref)
	if errors.Is(err, local.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	return rc, err
}

func (s *localStore) Delete(ctx context.Context, ref string) (bool, error) {
	return s.store.Remove(ctx, ref)
}

func (s *localStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
