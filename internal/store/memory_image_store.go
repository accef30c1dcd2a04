package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/id"
)

type MemoryImageStore struct {
	mu     sync.RWMutex
	images map[string]domain.StoredImage
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{
		images: make(map[string]domain.StoredImage),
	}
}

func (s *MemoryImageStore) Create(ctx context.Context, name string, format domain.Format, blob []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	image, err := domain.NewStoredImage(id.New(), name, format, bytes.Clone(blob))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[image.ID] = image
	return image.ID, nil
}

func (s *MemoryImageStore) Get(ctx context.Context, imageID string) (domain.StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredImage{}, err
	}
	if !id.Valid(imageID) {
		return domain.StoredImage{}, invalidID(imageID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	image, ok := s.images[imageID]
	if !ok {
		return domain.StoredImage{}, notFound(imageID)
	}
	image.Blob = bytes.Clone(image.Blob)
	return image, nil
}

func (s *MemoryImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
