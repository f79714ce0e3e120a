// Package scraper orchestrates one scrape invocation: retrying fetch,
// content analysis, record assembly and best-effort persistence.
package scraper

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"pagevault/internal/analyzer"
	"pagevault/internal/config"
	"pagevault/internal/domain"
	"pagevault/internal/fetcher"
	"pagevault/internal/profile"
	"pagevault/internal/storage"
)

// Pipeline is the retrying fetch contract the service drives.
// fetcher.Retrier satisfies it; tests substitute stubs.
type Pipeline interface {
	Execute(ctx context.Context, url string, maxAttempts int) (*fetcher.RawResult, error)
}

// Service runs the scrape pipeline. Each invocation gets its own fetch
// session (cookie jar, connection pool) via the pipeline factory, so
// concurrent invocations share no mutable state.
type Service struct {
	cfg         config.Config
	repo        storage.Repository
	log         logrus.FieldLogger
	now         func() time.Time
	newPipeline func() Pipeline
}

// NewService creates the production service wiring.
func NewService(cfg config.Config, repo storage.Repository, logger logrus.FieldLogger) *Service {
	log := logger.WithField("component", "scraper")
	return &Service{
		cfg:  cfg,
		repo: repo,
		log:  log,
		now:  time.Now,
		newPipeline: func() Pipeline {
			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			client := fetcher.NewClient(cfg.FetchTimeout(), cfg.MaxBodyBytes, logger)
			return fetcher.NewRetrier(client, profile.NewGenerator(rnd), rnd, nil, logger)
		},
	}
}

// Scrape fetches and analyzes url, persists the record best-effort under
// (userID, project_id), and returns the assembled record. Persistence
// failure never fails the scrape; it is reported in the record itself.
// A transport-level failure after all retries returns an error, after a
// failed-scrape marker has been written best-effort.
func (s *Service) Scrape(ctx context.Context, url, userID string, retries int) (*domain.ScrapeRecord, error) {
	log := s.log.WithFields(logrus.Fields{
		"url":     url,
		"user_id": userID,
		"retries": retries,
	})
	log.Info("Starting scrape")

	raw, err := s.newPipeline().Execute(ctx, url, retries)
	if err != nil {
		log.WithError(err).Error("Scrape failed after all attempts")
		s.saveFailed(ctx, url, userID, err)
		return nil, err
	}

	content := analyzer.Analyze(raw.Body, raw.FinalURL, url)
	record := s.assemble(url, userID, raw, content)

	if err := s.repo.SaveScrape(ctx, record); err != nil {
		// Best-effort persistence: record the failure, never propagate it.
		log.WithError(err).Warn("Failed to persist scrape record")
		record.SavedToDynamoDB = false
		record.SaveError = err.Error()
	} else {
		record.SavedToDynamoDB = true
	}

	log.WithFields(logrus.Fields{
		"project_id": record.ProjectID,
		"status":     record.StatusCode,
		"links":      record.LinksCount,
		"saved":      record.SavedToDynamoDB,
	}).Info("Scrape completed")

	return &record, nil
}

// saveFailed writes a failed-scrape marker so the attempt shows up in
// the user's project history. Errors are swallowed; the caller is
// already on the failure path.
func (s *Service) saveFailed(ctx context.Context, url, userID string, cause error) {
	now := s.now()
	record := domain.ScrapeRecord{
		URL:            url,
		UserID:         userID,
		ProjectID:      newProjectID(now),
		ScrapedAt:      now.Unix(),
		ScraperVersion: s.cfg.ScraperVersion,
		Status:         domain.StatusFailed,
		ErrorMessage:   cause.Error(),
	}
	if err := s.repo.SaveScrape(ctx, record); err != nil {
		s.log.WithError(err).Warn("Failed to persist failed-scrape marker")
	}
}

// ListProjects returns all persisted records of a user, newest first.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]domain.ScrapeRecord, error) {
	return s.repo.GetScrapesByUser(ctx, userID)
}

// GetProject returns one persisted record.
func (s *Service) GetProject(ctx context.Context, userID, projectID string) (*domain.ScrapeRecord, error) {
	return s.repo.GetProject(ctx, userID, projectID)
}

// DeleteProject removes one persisted record.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	return s.repo.DeleteProject(ctx, userID, projectID)
}
