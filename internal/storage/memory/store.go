// Package memory is an in-process ObjectStore used when no S3 endpoint is configured.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/querylens/querylens/internal/storage"
)

type object struct {
	data []byte
	info storage.ObjectInfo
}

type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{objects: map[string]object{}, now: time.Now}
}

func (s *Store) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return storage.ObjectInfo{}, fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("read object body: %w", err)
	}
	sum := md5.Sum(data)
	info := storage.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: s.now().UTC(),
	}

	s.mu.Lock()
	s.objects[key] = object{data: data, info: info}
	s.mu.Unlock()
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	stored, ok := s.objects[strings.TrimPrefix(key, "/")]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(stored.data)), nil
}

func (s *Store) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.objects[strings.TrimPrefix(key, "/")]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return stored.info, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.ObjectInfo, 0, len(s.objects))
	for key, stored := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, stored.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, strings.TrimPrefix(key, "/"))
	s.mu.Unlock()
	return nil
}

func (s *Store) HealthCheck(context.Context) error {
	return nil
}
