package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

// Storage is a mock of model.Storage.
type Storage struct {
	mock.Mock
}

func (m *Storage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	args := m.Called(ctx, key, reader, contentType)
	return args.Error(0)
}

func (m *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Storage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// Cache is a mock of model.Cache.
type Cache struct {
	mock.Mock
}

func (m *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	args := m.Called(ctx, key, out)
	return args.Bool(0), args.Error(1)
}

func (m *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}
