package engine

import (
	"context"
	"sync"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/health"
)

// fakeDocStore is an in-memory DocumentStore with fault injection.
type fakeDocStore struct {
	mu       sync.Mutex
	docs     map[string]health.Document
	fetchErr error
	writeErr map[string]error
	writes   []itemWrite
	gate     chan struct{} // when non-nil, SetIncluded blocks until closed
}

func newFakeDocStore(docs ...health.Document) *fakeDocStore {
	s := &fakeDocStore{docs: make(map[string]health.Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeDocStore) FetchAll(ctx context.Context) ([]health.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]health.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

func (s *fakeDocStore) SetIncluded(ctx context.Context, id string, included bool) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr[id]; err != nil {
		return err
	}
	s.writes = append(s.writes, itemWrite{id: id, included: included})
	if d, ok := s.docs[id]; ok {
		d.IncludedInContext = included
		s.docs[id] = d
	}
	return nil
}

func (s *fakeDocStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// fakePanelStore is an in-memory PanelStore with fault injection.
type fakePanelStore struct {
	mu       sync.Mutex
	panels   map[string]health.Panel
	fetchErr error
	writeErr map[string]error
	writes   []itemWrite
}

func newFakePanelStore(panels ...health.Panel) *fakePanelStore {
	s := &fakePanelStore{panels: make(map[string]health.Panel)}
	for _, p := range panels {
		s.panels[p.ID] = p
	}
	return s
}

func (s *fakePanelStore) FetchAll(ctx context.Context) ([]health.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]health.Panel, 0, len(s.panels))
	for _, p := range s.panels {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakePanelStore) SetIncluded(ctx context.Context, id string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr[id]; err != nil {
		return err
	}
	s.writes = append(s.writes, itemWrite{id: id, included: included})
	if p, ok := s.panels[id]; ok {
		p.IncludedInContext = included
		s.panels[id] = p
	}
	return nil
}

func (s *fakePanelStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// fakeFlagStore is an in-memory FlagStore.
type fakeFlagStore struct {
	mu       sync.Mutex
	enabled  []category.Category
	fetchErr error
	writeErr error
	persists int
}

func newFakeFlagStore(enabled ...category.Category) *fakeFlagStore {
	return &fakeFlagStore{enabled: enabled}
}

func (s *fakeFlagStore) FetchEnabled(ctx context.Context) ([]category.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]category.Category(nil), s.enabled...), nil
}

func (s *fakeFlagStore) PersistEnabled(ctx context.Context, enabled []category.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.enabled = append([]category.Category(nil), enabled...)
	s.persists++
	return nil
}

func (s *fakeFlagStore) persistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}

// doc builds a test document.
func doc(id string, kind category.Kind, text string, included bool) health.Document {
	return health.Document{
		ID:                id,
		Title:             "doc " + id,
		Kind:              kind,
		ExtractedText:     text,
		ExtractedChars:    health.CountChars(text),
		IncludedInContext: included,
	}
}

// panel builds a test panel.
func panel(id string, resultCount int, included bool) health.Panel {
	return health.Panel{
		ID:                id,
		Name:              "panel " + id,
		ResultCount:       resultCount,
		IncludedInContext: included,
	}
}
