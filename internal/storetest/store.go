// Package storetest provides an in-memory objstore.Client for tests.
package storetest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/yuya-takeyama/bulklift/pkg/objstore"
)

// Counts is the number of calls made per operation.
type Counts struct {
	CreateContainer int
	Put             int
	Delete          int
	List            int
}

// Store keeps containers in memory. The optional hooks run before the
// default behavior; a non-nil error from a hook is returned as is.
type Store struct {
	MaxPage int

	CreateFunc func(ctx context.Context, container string) error
	PutFunc    func(ctx context.Context, req *objstore.PutObjectRequest) error
	DeleteFunc func(ctx context.Context, container, name string) error
	ListFunc   func(ctx context.Context, container, marker string, limit int) error

	mu         sync.Mutex
	containers map[string]map[string][]byte
	counts     Counts
}

func New() *Store {
	return &Store{
		MaxPage:    10000,
		containers: make(map[string]map[string][]byte),
	}
}

// Seed creates container with empty objects named names.
func (s *Store) Seed(container string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.containers[container]
	if !ok {
		objects = make(map[string][]byte)
		s.containers[container] = objects
	}
	for _, n := range names {
		objects[n] = []byte{}
	}
}

// Names returns the sorted object names of container.
func (s *Store) Names(container string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.containers[container]))
	for n := range s.containers[container] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Body(container, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.containers[container][name]
	return b, ok
}

func (s *Store) HasContainer(container string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.containers[container]
	return ok
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func (s *Store) URL() string {
	return "mem://store"
}

func (s *Store) MaxPageSize() int {
	return s.MaxPage
}

func (s *Store) CreateContainer(ctx context.Context, container string) error {
	s.mu.Lock()
	s.counts.CreateContainer++
	s.mu.Unlock()

	if s.CreateFunc != nil {
		if err := s.CreateFunc(ctx, container); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[container]; !ok {
		s.containers[container] = make(map[string][]byte)
	}
	return nil
}

func (s *Store) PutObject(ctx context.Context, req *objstore.PutObjectRequest) error {
	s.mu.Lock()
	s.counts.Put++
	s.mu.Unlock()

	if s.PutFunc != nil {
		if err := s.PutFunc(ctx, req); err != nil {
			return err
		}
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	if int64(len(body)) != req.Size {
		return fmt.Errorf("put %s: read %d bytes, expected %d", req.Name, len(body), req.Size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.containers[req.Container]
	if !ok {
		return &objstore.Error{Op: "put", Container: req.Container, Name: req.Name, Err: objstore.ErrNotFound}
	}
	objects[req.Name] = body
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, container, name string) error {
	s.mu.Lock()
	s.counts.Delete++
	s.mu.Unlock()

	if s.DeleteFunc != nil {
		if err := s.DeleteFunc(ctx, container, name); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[container][name]; !ok {
		return &objstore.Error{Op: "delete", Container: container, Name: name, Err: objstore.ErrNotFound}
	}
	delete(s.containers[container], name)
	return nil
}

func (s *Store) ListPage(ctx context.Context, container, marker string, limit int) ([]objstore.ObjectRecord, error) {
	s.mu.Lock()
	s.counts.List++
	s.mu.Unlock()

	if s.ListFunc != nil {
		if err := s.ListFunc(ctx, container, marker, limit); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	objects, ok := s.containers[container]
	s.mu.Unlock()
	if !ok {
		return nil, &objstore.Error{Op: "list", Container: container, Err: objstore.ErrNotFound}
	}

	names := s.Names(container)
	start := sort.Search(len(names), func(i int) bool { return names[i] > marker })
	end := start + limit
	if end > len(names) {
		end = len(names)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	page := make([]objstore.ObjectRecord, 0, end-start)
	for _, n := range names[start:end] {
		page = append(page, objstore.ObjectRecord{
			Name:         n,
			Size:         int64(len(objects[n])),
			LastModified: time.Unix(0, 0).UTC(),
		})
	}
	return page, nil
}
