package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/renderer"
	"github.com/dellplatz/diag-backend/internal/storage"
	"github.com/rs/zerolog"
)

// DocumentRenderer converts an HTML document to PDF.
type DocumentRenderer interface {
	Convert(ctx context.Context, html []byte) ([]byte, error)
}

// RenderPolicy bounds the calls to the rendering service.
type RenderPolicy struct {
	Timeout time.Duration // per attempt
	Retries int           // additional attempts after the first
	Backoff time.Duration // doubled after every failed attempt
}

// ReportService evaluates a test, renders the report and stores the artifact.
type ReportService struct {
	scoring  *ScoringService
	renderer DocumentRenderer
	blobs    storage.BlobStore
	policy   RenderPolicy
	log      zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewReportService(scoring *ScoringService, r DocumentRenderer, blobs storage.BlobStore, policy RenderPolicy, log zerolog.Logger) *ReportService {
	return &ReportService{
		scoring:  scoring,
		renderer: r,
		blobs:    blobs,
		policy:   policy,
		log:      log.With().Str("component", "report_service").Logger(),
		sleep:    sleepCtx,
	}
}

// Generate evaluates testID for the subject and persists the rendered report.
// The artifact is written only after a successful render; any failure leaves
// the previously stored artifact untouched.
func (s *ReportService) Generate(ctx context.Context, subjectID, testID string) (*model.Report, error) {
	ev, err := s.scoring.Evaluate(ctx, subjectID, testID)
	if err != nil {
		return nil, err
	}

	html, err := renderer.FormatHTML(ev)
	if err != nil {
		return nil, fmt.Errorf("format report: %w", err)
	}

	pdf, err := s.render(ctx, html)
	if err != nil {
		s.log.Error().Err(err).
			Str("subject_id", subjectID).
			Str("test_id", testID).
			Msg("Failed to render report")
		return nil, upstream("render report", err)
	}

	key, err := s.blobs.Put(config.CacheKey.ArtifactKey(subjectID, testID), bytes.NewReader(pdf))
	if err != nil {
		return nil, upstream("store report", err)
	}

	s.log.Info().
		Str("subject_id", subjectID).
		Str("test_id", testID).
		Str("artifact", key).
		Int("bytes", len(pdf)).
		Msg("Report stored")

	return &model.Report{Evaluation: *ev, ArtifactKey: key}, nil
}

// Open returns the stored report of a subject's test.
func (s *ReportService) Open(subjectID, testID string) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(config.CacheKey.ArtifactKey(subjectID, testID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: report for test %q", ErrNotFound, testID)
		}
		return nil, upstream("open report", err)
	}
	return rc, nil
}

func (s *ReportService) render(ctx context.Context, html []byte) ([]byte, error) {
	backoff := s.policy.Backoff
	for attempt := 0; ; attempt++ {
		pdf, err := s.convertOnce(ctx, html)
		if err == nil {
			return pdf, nil
		}
		if attempt >= s.policy.Retries || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		s.log.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Renderer call failed, retrying")
		if err := s.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (s *ReportService) convertOnce(ctx context.Context, html []byte) ([]byte, error) {
	if s.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.Timeout)
		defer cancel()
	}
	return s.renderer.Convert(ctx, html)
}

// retryable reports whether a renderer failure may be transient: transport
// errors, 5xx and 429.
func retryable(err error) bool {
	var se *renderer.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, renderer.ErrEmptyDocument)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
