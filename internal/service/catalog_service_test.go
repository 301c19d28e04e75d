package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog_BareArrayBecomesLegacyTest(t *testing.T) {
	raw := []byte(`[
		{"id": "Q1", "prompt": "I notice small sounds", "options": [{"value": 0, "label": "Never"}, {"value": 1, "label": "Often"}]}
	]`)

	doc, err := ParseCatalog(raw)
	require.NoError(t, err)
	require.Len(t, doc.Tests, 1)
	assert.Equal(t, "aq", doc.Tests[0].ID)
	assert.Equal(t, "AQ", doc.Tests[0].Name)
	require.Len(t, doc.Tests[0].Questions, 1)
	assert.Equal(t, "Often", doc.Tests[0].Questions[0].Options[1].Label)
}

func TestParseCatalog_RejectsUnknownFields(t *testing.T) {
	_, err := ParseCatalog([]byte(`{"tests": [], "version": 2}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateCatalog(t *testing.T) {
	opts := []model.Option{{Value: 0, Label: "No"}, {Value: 1, Label: "Yes"}}

	tests := []struct {
		name string
		doc  *model.CatalogDocument
		ok   bool
	}{
		{name: "valid", doc: aqCatalog(), ok: true},
		{name: "no tests", doc: &model.CatalogDocument{}},
		{name: "duplicate test id", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "aq", Name: "AQ"}, {ID: "aq", Name: "AQ again"},
		}}},
		{name: "question id reused across tests", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "a", Name: "A", Questions: []model.Question{{ID: "Q1", Options: opts}}},
			{ID: "b", Name: "B", Questions: []model.Question{{ID: "Q1", Options: opts}}},
		}}},
		{name: "question without options", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "a", Name: "A", Questions: []model.Question{{ID: "Q1"}}},
		}}},
		{name: "test id with a space", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "aq kurz", Name: "AQ kurz", Questions: []model.Question{{ID: "Q1", Options: opts}}},
		}}},
		{name: "question id longer than 64 characters", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "aq", Name: "AQ", Questions: []model.Question{{ID: strings.Repeat("q", 80), Options: opts}}},
		}}},
		{name: "question id at 64 characters", ok: true, doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "aq", Name: "AQ", Questions: []model.Question{{ID: strings.Repeat("q", 64), Options: opts}}},
		}}},
		{name: "test name too long", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "aq", Name: strings.Repeat("ä", model.MaxTestNameLength+1)},
		}}},
		{name: "empty option label", doc: &model.CatalogDocument{Tests: []model.CatalogTest{
			{ID: "a", Name: "A", Questions: []model.Question{{ID: "Q1", Options: []model.Option{{Value: 1, Label: " "}}}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.doc)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	firstTests, err := f.catalog.ListTests(ctx)
	require.NoError(t, err)
	firstQuestions, err := f.store.ListQuestions(ctx, "aq")
	require.NoError(t, err)

	res, err := f.catalog.Seed(ctx, aqCatalog())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tests)
	assert.Equal(t, 3, res.Questions)
	assert.Zero(t, res.PrunedAnswers)

	secondTests, err := f.catalog.ListTests(ctx)
	require.NoError(t, err)
	secondQuestions, err := f.store.ListQuestions(ctx, "aq")
	require.NoError(t, err)

	assert.Equal(t, firstTests, secondTests)
	assert.Equal(t, firstQuestions, secondQuestions)
}

func TestSeed_KeepsSubjectDataForSurvivingIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sid := f.newSubject(t, "aq", "bdi")
	require.NoError(t, f.answers.Submit(ctx, sid, map[string]int{"Q1": 1, "B1": 2}))

	doc := aqCatalog()
	doc.Tests = doc.Tests[:1]
	res, err := f.catalog.Seed(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PrunedAssignments)
	assert.Equal(t, 1, res.PrunedAnswers)

	ev, err := f.scoring.Evaluate(ctx, sid, "aq")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Total)

	tests, err := f.subjects.ListAssignedTests(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, []model.Test{{ID: "aq", Name: "AQ"}}, tests)
}

func TestSeed_InvalidDocumentLeavesCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.Seed(ctx, &model.CatalogDocument{Tests: []model.CatalogTest{{ID: "x"}}})
	require.ErrorIs(t, err, ErrValidation)

	tests, err := f.catalog.ListTests(ctx)
	require.NoError(t, err)
	assert.Len(t, tests, 2)
}

func TestListQuestions_CanonicalOrderAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	questions, err := f.catalog.ListQuestions(ctx, "aq")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "Q1", questions[0].ID)
	assert.Equal(t, "Q2", questions[1].ID)
	assert.Equal(t, "aq", questions[0].TestID)
	assert.Equal(t, 1, f.cache.hits, "seed warms the cache")

	f.cache.byTest = map[string][]model.Question{}
	questions, err = f.catalog.ListQuestions(ctx, "aq")
	require.NoError(t, err)
	assert.Len(t, questions, 2)
	assert.Len(t, f.cache.byTest["aq"], 2, "miss refills the cache")
}

// seedDuringLoad re-seeds the catalog right after the first question list
// has been read from the store, before the service caches it.
type seedDuringLoad struct {
	*memStore
	seed func()
}

func (r *seedDuringLoad) ListQuestions(ctx context.Context, testID string) ([]model.Question, error) {
	questions, err := r.memStore.ListQuestions(ctx, testID)
	if seed := r.seed; seed != nil {
		r.seed = nil
		seed()
	}
	return questions, err
}

func TestListQuestions_SeedDuringLoadDoesNotPinOldList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &seedDuringLoad{memStore: f.store}
	svc := NewCatalogService(repo, f.cache, zerolog.Nop())

	reordered := aqCatalog()
	q1 := &reordered.Tests[0].Questions[0]
	q1.Options = []model.Option{q1.Options[1], q1.Options[0]}

	f.cache.byTest = map[string][]model.Question{}
	repo.seed = func() {
		_, err := svc.Seed(ctx, reordered)
		require.NoError(t, err)
	}

	_, err := svc.ListQuestions(ctx, "aq")
	require.NoError(t, err)

	served, err := svc.ListQuestions(ctx, "aq")
	require.NoError(t, err)
	stored, err := f.store.ListQuestions(ctx, "aq")
	require.NoError(t, err)

	require.Len(t, served, 2)
	assert.Equal(t, "Often", stored[0].Options[0].Label)
	assert.Equal(t, stored, served, "form order must match the order answers are scored in")
}

func TestListQuestions_UnknownTest(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.ListQuestions(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedFromFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tests": [
		{"id": "mini", "name": "Mini", "questions": [
			{"id": "M1", "prompt": "Ok?", "options": [{"value": 0, "label": "Nein"}, {"value": 1, "label": "Ja"}]}
		]}
	]}`), 0o644))

	res, err := f.catalog.SeedFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tests)
	assert.Equal(t, 1, res.Questions)

	_, err = f.catalog.GetTest(context.Background(), "aq")
	assert.ErrorIs(t, err, ErrNotFound)
}
