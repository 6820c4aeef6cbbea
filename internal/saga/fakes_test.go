package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docindex-platform/models"
)

type fakeCatalog struct {
	docs  []models.DocumentRef
	err   error
	calls int
}

func (f *fakeCatalog) ListEligibleDocuments(_ context.Context) ([]models.DocumentRef, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.DocumentRef(nil), f.docs...), nil
}

type fakeResources struct {
	created   []string
	deleted   []string
	createErr error
	deleteErr error
}

func (f *fakeResources) CreateResource(_ context.Context, suffix string) (*models.CreatedResource, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, suffix)
	return &models.CreatedResource{
		ResourceID:        "idx-" + suffix,
		DataSourceID:      "ds-" + suffix,
		VectorIndexHandle: "vec_" + suffix,
	}, nil
}

func (f *fakeResources) DeleteResource(_ context.Context, resourceID string, deleteVectors bool) error {
	if !deleteVectors {
		return errors.New("vectors must be deleted with the resource")
	}
	f.deleted = append(f.deleted, resourceID)
	return f.deleteErr
}

// fakeActive stores the pointer. ackErr models a write that lands but reports
// failure; it fires once.
type fakeActive struct {
	id     string
	getErr error
	setErr error
	ackErr error
}

func (f *fakeActive) ActiveResource(_ context.Context) (string, error) {
	return f.id, f.getErr
}

func (f *fakeActive) SetActiveResource(_ context.Context, id string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.id = id
	if err := f.ackErr; err != nil {
		f.ackErr = nil
		return err
	}
	return nil
}

// fakeExtractor fails or returns empty text for the configured locations.
type fakeExtractor struct {
	mu       sync.Mutex
	empty    map[string]bool
	fail     map[string]error
	ingested []string
	sidecars map[string]map[string]any
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		empty:    map[string]bool{},
		fail:     map[string]error{},
		sidecars: map[string]map[string]any{},
	}
}

func (f *fakeExtractor) ReadText(_ context.Context, loc string) (string, error) {
	if f.empty[loc] {
		return "   ", nil
	}
	return "text of " + loc, nil
}

func (f *fakeExtractor) ExtractMetadata(_ context.Context, loc, id string) (map[string]any, error) {
	if err := f.fail[loc]; err != nil {
		return nil, err
	}
	return map[string]any{"document_id": id}, nil
}

func (f *fakeExtractor) WriteSidecar(_ context.Context, loc string, md map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sidecars[loc] = md
	return loc + ".metadata.json", nil
}

func (f *fakeExtractor) Ingest(_ context.Context, resourceID, dataSourceID, loc, sidecar string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, resourceID+"|"+loc)
	return "COMPLETE", nil
}

type fakeProgress struct {
	snaps []models.ProgressSnapshot
	err   error
}

func (f *fakeProgress) Publish(_ context.Context, snap models.ProgressSnapshot) error {
	f.snaps = append(f.snaps, snap)
	return f.err
}

func (f *fakeProgress) last() models.ProgressSnapshot {
	return f.snaps[len(f.snaps)-1]
}

type fakeLock struct {
	acquired   int
	released   int
	acquireErr error
	releaseErr error
}

func (f *fakeLock) Acquire(_ context.Context) error {
	f.acquired++
	return f.acquireErr
}

func (f *fakeLock) Release(_ context.Context) error {
	f.released++
	return f.releaseErr
}

type harness struct {
	catalog   *fakeCatalog
	resources *fakeResources
	active    *fakeActive
	extractor *fakeExtractor
	progress  *fakeProgress
	lock      *fakeLock
	sleeps    int
	orch      *Orchestrator
}

var fixedNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func newHarness(n, batchSize int) *harness {
	h := &harness{
		catalog:   &fakeCatalog{docs: makeDocs(n)},
		resources: &fakeResources{},
		active:    &fakeActive{id: "idx-old"},
		extractor: newFakeExtractor(),
		progress:  &fakeProgress{},
		lock:      &fakeLock{},
	}
	orch, err := New(Deps{
		Catalog:   h.catalog,
		Resources: h.resources,
		Active:    h.active,
		Extractor: h.extractor,
		Progress:  h.progress,
		Lock:      h.lock,
		Clock:     func() time.Time { return fixedNow },
		Sleep: func(context.Context, time.Duration) error {
			h.sleeps++
			return nil
		},
	}, Options{BatchSize: batchSize, DocumentDelay: time.Millisecond, ErrorHistory: 20})
	if err != nil {
		panic(err)
	}
	h.orch = orch
	return h
}

func makeDocs(n int) []models.DocumentRef {
	docs := make([]models.DocumentRef, n)
	for i := range docs {
		docs[i] = models.DocumentRef{
			DocumentID:      fmt.Sprintf("doc-%03d", i),
			ContentLocation: fmt.Sprintf("content/doc-%03d.txt", i),
			Filename:        fmt.Sprintf("doc-%03d.txt", i),
		}
	}
	return docs
}
