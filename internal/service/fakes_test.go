package service

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// memStore is an in-memory stand-in for the catalog, subject and answer
// repositories. It shares one state so cross-repository behaviour (pruning on
// re-seed, scoring filters) can be tested without PostgreSQL.
type memStore struct {
	mu          sync.Mutex
	tests       map[string]model.Test
	questions   map[string]model.Question
	subjects    map[string]model.Subject
	assignments map[string]map[string]bool
	answers     map[string]map[string]model.Answer

	upsertErr error
	upserts   int

	// createErrs are returned by successive Create calls before any succeeds.
	createErrs []error
	creates    int
}

func newMemStore() *memStore {
	return &memStore{
		tests:       map[string]model.Test{},
		questions:   map[string]model.Question{},
		subjects:    map[string]model.Subject{},
		assignments: map[string]map[string]bool{},
		answers:     map[string]map[string]model.Answer{},
	}
}

var (
	_ repository.CatalogRepository = (*memStore)(nil)
	_ repository.SubjectRepository = (*memStore)(nil)
	_ repository.AnswerRepository  = (*memStore)(nil)
)

func (m *memStore) ListTests(_ context.Context) ([]model.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Test, 0, len(m.tests))
	for _, t := range m.tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetTest(_ context.Context, id string) (*model.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m *memStore) ListQuestions(_ context.Context, testID string) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questionsOf(testID), nil
}

func (m *memStore) questionsOf(testID string) []model.Question {
	var out []model.Question
	for _, q := range m.questions {
		if q.TestID == testID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderNum != out[j].OrderNum {
			return out[i].OrderNum < out[j].OrderNum
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) GetQuestions(_ context.Context, ids []string) (map[string]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Question, len(ids))
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (m *memStore) Replace(_ context.Context, tests []model.CatalogTest) (*model.SeedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tests = map[string]model.Test{}
	m.questions = map[string]model.Question{}
	res := &model.SeedResult{}
	for _, t := range tests {
		m.tests[t.ID] = model.Test{ID: t.ID, Name: t.Name}
		res.Tests++
		for i, q := range t.Questions {
			q.TestID = t.ID
			q.OrderNum = i
			m.questions[q.ID] = q
			res.Questions++
		}
	}

	for _, assigned := range m.assignments {
		for testID := range assigned {
			if _, ok := m.tests[testID]; !ok {
				delete(assigned, testID)
				res.PrunedAssignments++
			}
		}
	}
	for _, answers := range m.answers {
		for qid := range answers {
			if _, ok := m.questions[qid]; !ok {
				delete(answers, qid)
				res.PrunedAnswers++
			}
		}
	}
	return res, nil
}

func (m *memStore) Create(_ context.Context, s *model.Subject, testIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	for _, id := range testIDs {
		if _, ok := m.tests[id]; !ok {
			return repository.ErrForeignKey
		}
	}
	s.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.subjects[s.ID] = *s
	m.assignments[s.ID] = map[string]bool{}
	for _, id := range testIDs {
		m.assignments[s.ID][id] = true
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (m *memStore) GetByRetrievalID(_ context.Context, retrievalID uuid.UUID) (*model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s.RetrievalID == retrievalID {
			return &s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) ListAssignedTests(_ context.Context, subjectID string) ([]model.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Test
	for id := range m.assignments[subjectID] {
		out = append(out, m.tests[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) IsAssigned(_ context.Context, subjectID, testID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignments[subjectID][testID], nil
}

func (m *memStore) Upsert(_ context.Context, subjectID string, answers map[string]int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	if _, ok := m.subjects[subjectID]; !ok {
		return 0, pgx.ErrNoRows
	}
	for qid := range answers {
		if _, ok := m.questions[qid]; !ok {
			return 0, repository.ErrForeignKey
		}
	}
	if m.answers[subjectID] == nil {
		m.answers[subjectID] = map[string]model.Answer{}
	}
	for qid, choice := range answers {
		m.answers[subjectID][qid] = model.Answer{
			SubjectID:  subjectID,
			QuestionID: qid,
			Choice:     choice,
			UpdatedAt:  time.Now(),
		}
	}
	return int64(len(answers)), nil
}

func (m *memStore) ListForTest(_ context.Context, subjectID, testID string) ([]model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answersFor(subjectID, testID), nil
}

func (m *memStore) answersFor(subjectID, testID string) []model.Answer {
	var out []model.Answer
	for _, q := range m.questionsOf(testID) {
		if a, ok := m.answers[subjectID][q.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) Snapshot(_ context.Context, subjectID, testID string) (*model.ScoringSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.ScoringSnapshot{
		Test:      t,
		Questions: m.questionsOf(testID),
		Answers:   m.answersFor(subjectID, testID),
	}, nil
}

// setChoice writes a raw answer, bypassing validation.
func (m *memStore) setChoice(subjectID, questionID string, choice int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answers[subjectID] == nil {
		m.answers[subjectID] = map[string]model.Answer{}
	}
	m.answers[subjectID][questionID] = model.Answer{SubjectID: subjectID, QuestionID: questionID, Choice: choice}
}

func (m *memStore) answerCount(subjectID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.answers[subjectID])
}

type memCache struct {
	byTest   map[string][]model.Question
	gen      int64
	hits     int
	replaced int
}

func newMemCache() *memCache {
	return &memCache{byTest: map[string][]model.Question{}}
}

func (c *memCache) Questions(_ context.Context, testID string) ([]model.Question, bool) {
	qs, ok := c.byTest[testID]
	if ok {
		c.hits++
	}
	return qs, ok
}

func (c *memCache) Generation(context.Context) (int64, error) {
	return c.gen, nil
}

func (c *memCache) StoreQuestions(_ context.Context, gen int64, testID string, questions []model.Question) {
	if gen != c.gen {
		return
	}
	c.byTest[testID] = questions
}

func (c *memCache) Replace(_ context.Context, byTest map[string][]model.Question) error {
	c.replaced++
	c.gen++
	c.byTest = byTest
	return nil
}

type stubLock struct {
	err      error
	acquired int
	released int
}

func (l *stubLock) Acquire(_ context.Context, _ string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

// stubRenderer replays results in order; the last one repeats.
type stubRenderer struct {
	results []renderResult
	calls   int
	lastDoc []byte
}

type renderResult struct {
	pdf []byte
	err error
}

func (r *stubRenderer) Convert(_ context.Context, html []byte) ([]byte, error) {
	r.lastDoc = html
	res := r.results[min(r.calls, len(r.results)-1)]
	r.calls++
	return res.pdf, res.err
}

type memBlobs struct {
	data map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (b *memBlobs) Put(key string, r io.Reader) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.data[key] = buf
	return key, nil
}

func (b *memBlobs) Open(key string) (io.ReadCloser, error) {
	buf, ok := b.data[key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

// aqCatalog is the two-question questionnaire used throughout the tests.
func aqCatalog() *model.CatalogDocument {
	return &model.CatalogDocument{Tests: []model.CatalogTest{
		{
			ID:   "aq",
			Name: "AQ",
			Questions: []model.Question{
				{ID: "Q1", Prompt: "I notice small sounds", Options: []model.Option{{Value: 0, Label: "Never"}, {Value: 1, Label: "Often"}}},
				{ID: "Q2", Prompt: "I enjoy social chitchat", Options: []model.Option{{Value: 0, Label: "No"}, {Value: 1, Label: "Yes"}}},
			},
		},
		{
			ID:   "bdi",
			Name: "BDI",
			Questions: []model.Question{
				{ID: "B1", Prompt: "Sadness", Options: []model.Option{{Value: 0, Label: "Not sad"}, {Value: 2, Label: "Sad"}, {Value: 3, Label: "Very sad"}}},
			},
		},
	}}
}

type fixture struct {
	store    *memStore
	cache    *memCache
	lock     *stubLock
	renderer *stubRenderer
	blobs    *memBlobs

	catalog  *CatalogService
	subjects *SubjectService
	answers  *AnswerService
	scoring  *ScoringService
	reports  *ReportService
}

// newFixture wires all services over in-memory fakes with the aq/bdi catalog seeded.
func newFixture(t *testing.T) *fixture {
	log := zerolog.Nop()
	f := &fixture{
		store:    newMemStore(),
		cache:    newMemCache(),
		lock:     &stubLock{},
		renderer: &stubRenderer{results: []renderResult{{pdf: []byte("%PDF-1.7 report")}}},
		blobs:    newMemBlobs(),
	}
	f.catalog = NewCatalogService(f.store, f.cache, log)
	f.subjects = NewSubjectService(f.store, f.catalog, log)
	f.answers = NewAnswerService(f.store, f.store, f.store, f.lock, log)
	f.scoring = NewScoringService(f.store, f.store, log)
	f.scoring.now = func() time.Time { return time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC) }
	f.reports = NewReportService(f.scoring, f.renderer, f.blobs, RenderPolicy{Retries: 2, Backoff: time.Millisecond}, log)
	f.reports.sleep = func(context.Context, time.Duration) error { return nil }

	t.Helper()
	if _, err := f.catalog.Seed(context.Background(), aqCatalog()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return f
}

// newSubject creates a subject assigned to testIDs and returns its id.
func (f *fixture) newSubject(t *testing.T, testIDs ...string) string {
	t.Helper()
	s, err := f.subjects.Create(context.Background(), testIDs)
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	return s.ID
}
