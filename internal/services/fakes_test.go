package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/archstudio/intake/internal/models"
	pgrepo "github.com/archstudio/intake/internal/repositories/postgres"
	"github.com/archstudio/intake/internal/utils"
)

type fakeRunRepo struct {
	mu       sync.Mutex
	runs     map[string]*models.PipelineRun
	events   []models.RunEvent
	createFn func() error
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[string]*models.PipelineRun{}}
}

func (f *fakeRunRepo) Create(_ context.Context, run *models.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		if err := f.createFn(); err != nil {
			return err
		}
	}
	cp := *run
	f.runs[run.RunID] = &cp
	return nil
}

func (f *fakeRunRepo) GetByRunID(_ context.Context, runID string) (*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (f *fakeRunRepo) ListByProject(_ context.Context, projectID, stage string, _ int64) ([]models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PipelineRun
	for _, run := range f.runs {
		if run.ProjectID == projectID && (stage == "" || run.Stage == stage) {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (f *fakeRunRepo) SetProgress(_ context.Context, runID, stage string, progress models.RunProgress, event models.RunEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return utils.ErrNotFound
	}
	run.PipelineStage = stage
	run.Progress = progress
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRunRepo) Finish(_ context.Context, runID, stage, message, code, recordingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return utils.ErrNotFound
	}
	now := time.Now()
	run.PipelineStage = stage
	run.Message = message
	run.ErrorCode = code
	run.RecordingID = recordingID
	run.FinishedAt = &now
	return nil
}

type fakeQueue struct {
	mu         sync.Mutex
	locks      map[string]string
	enqueued   []string
	cancelled  map[string]bool
	published  map[string][][]byte
	enqueueErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{locks: map[string]string{}, cancelled: map[string]bool{}, published: map[string][][]byte{}}
}

func (q *fakeQueue) Lock(_ context.Context, sourceID, runID string, _ time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, held := q.locks[sourceID]; held {
		return false, nil
	}
	q.locks[sourceID] = runID
	return true, nil
}

func (q *fakeQueue) Unlock(_ context.Context, sourceID, runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.locks[sourceID] == runID {
		delete(q.locks, sourceID)
	}
	return nil
}

func (q *fakeQueue) Enqueue(_ context.Context, runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, runID)
	return nil
}

func (q *fakeQueue) RequestCancel(_ context.Context, runID string, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled[runID] = true
	return nil
}

func (q *fakeQueue) CancelRequested(_ context.Context, runID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled[runID], nil
}

func (q *fakeQueue) Publish(_ context.Context, runID string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[runID] = append(q.published[runID], payload)
	return nil
}

type fakeChecklistRepo struct {
	mu      sync.Mutex
	rows    map[string]models.ProjectChecklist
	creates int
}

func newFakeChecklistRepo() *fakeChecklistRepo {
	return &fakeChecklistRepo{rows: map[string]models.ProjectChecklist{}}
}

func (f *fakeChecklistRepo) Get(_ context.Context, ownerID string) (*models.ProjectChecklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ownerID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &row, nil
}

func (f *fakeChecklistRepo) Create(_ context.Context, c *models.ProjectChecklist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, ok := f.rows[c.OwnerID]; !ok {
		f.rows[c.OwnerID] = *c
	}
	return nil
}

func (f *fakeChecklistRepo) Update(_ context.Context, ownerID string, fn pgrepo.ChecklistMutator) (*models.ProjectChecklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ownerID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	items, err := row.DecodeItems()
	if err != nil {
		return nil, err
	}
	next, err := fn(items)
	if err != nil {
		return nil, err
	}
	if err := row.EncodeItems(next); err != nil {
		return nil, err
	}
	f.rows[ownerID] = row
	return &row, nil
}

func (f *fakeChecklistRepo) seed(ownerID string, items []models.ChecklistItem) {
	row := models.ProjectChecklist{OwnerID: ownerID}
	_ = row.EncodeItems(items)
	f.rows[ownerID] = row
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	dels    int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string][]byte{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.entries[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.dels++
	return nil
}

type fakeRecordingRepo struct {
	rows map[string]models.Recording
	err  error
}

func (f *fakeRecordingRepo) Insert(_ context.Context, rec *models.Recording) error {
	if f.err != nil {
		return f.err
	}
	if f.rows == nil {
		f.rows = map[string]models.Recording{}
	}
	f.rows[rec.ID] = *rec
	return nil
}

func (f *fakeRecordingRepo) GetByID(_ context.Context, id string) (*models.Recording, error) {
	rec, ok := f.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeRecordingRepo) ListByProject(_ context.Context, projectID, stage string, _ int) ([]models.Recording, error) {
	var out []models.Recording
	for _, rec := range f.rows {
		if rec.ProjectID == projectID && (stage == "" || rec.Stage == stage) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeDocumentRepo struct {
	docs []models.Document
}

func (f *fakeDocumentRepo) Insert(_ context.Context, doc *models.Document) error {
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeDocumentRepo) ListByRecording(_ context.Context, recordingID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.RecordingID == recordingID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeLearningRepo struct {
	rows []models.Learning
	err  error
}

func (f *fakeLearningRepo) Insert(_ context.Context, l *models.Learning) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, *l)
	return nil
}

func (f *fakeLearningRepo) Recent(_ context.Context, stage string, n int) ([]models.Learning, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Learning
	for _, l := range f.rows {
		if stage == "" || l.Stage == stage {
			out = append(out, l)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

var errBoom = errors.New("boom")
