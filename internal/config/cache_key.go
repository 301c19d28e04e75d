package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CatalogQuestionsKey returns the cache key for a test's ordered question list
func (r *CacheKeyStruct) CatalogQuestionsKey(testID string) string {
	return fmt.Sprintf("catalog:test:%s:questions", testID)
}

// CatalogTestsKey returns the set of test ids that currently have cached question lists
func (r *CacheKeyStruct) CatalogTestsKey() string {
	return "catalog:tests"
}

// CatalogGenerationKey returns the counter bumped on every catalog re-seed
func (r *CacheKeyStruct) CatalogGenerationKey() string {
	return "catalog:gen"
}

// SubjectLockKey returns the key of the per-subject write lock
func (r *CacheKeyStruct) SubjectLockKey(subjectID string) string {
	return fmt.Sprintf("subject:%s:lock", subjectID)
}

// ArtifactKey returns the blob key of a subject's rendered report for a test
func (r *CacheKeyStruct) ArtifactKey(subjectID, testID string) string {
	return fmt.Sprintf("reports/%s/%s.pdf", subjectID, testID)
}

var CacheKey = NewCacheKeyStruct()
