package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	apperrors "voicepipe/internal/app/errors"
)

// FakeBlobStore keeps objects in memory and records uploads and removals so
// tests can assert the compensation path cleaned up after itself.
type FakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	Uploaded []string
	Removed  []string

	UploadErr error
	FetchErr  error
	RemoveErr error
}

func NewFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{objects: make(map[string][]byte)}
}

func (f *FakeBlobStore) Upload(ctx context.Context, userID, filename, contentType string, r io.Reader, size int64) (string, error) {
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	location := fmt.Sprintf("recordings/%s/%d-%s", userID, len(f.objects), filename)
	f.objects[location] = data
	f.Uploaded = append(f.Uploaded, location)
	return location, nil
}

func (f *FakeBlobStore) Fetch(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	if f.FetchErr != nil {
		return nil, 0, f.FetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[location]
	if !ok {
		return nil, 0, apperrors.Newf(apperrors.KindNotFound, "object %s not found", location)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *FakeBlobStore) Remove(ctx context.Context, location string) error {
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, location)
	f.Removed = append(f.Removed, location)
	return nil
}

func (f *FakeBlobStore) SignedURL(ctx context.Context, location string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[location]; !ok {
		return "", apperrors.Newf(apperrors.KindNotFound, "object %s not found", location)
	}
	return fmt.Sprintf("https://blob.test/%s?expires=%d", location, time.Now().Add(ttl).Unix()), nil
}

// Put stores raw bytes under a location for test setup.
func (f *FakeBlobStore) Put(location string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[location] = data
}

// Has reports whether the location still holds an object.
func (f *FakeBlobStore) Has(location string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[location]
	return ok
}
