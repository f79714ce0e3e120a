package storage

import (
	"context"
	"errors"

	"pagevault/internal/domain"
)

// ErrProjectNotFound is returned by GetProject when no record exists
// under the given (user, project) key pair.
var ErrProjectNotFound = errors.New("project not found")

// Repository defines the interface for the two-key project store:
// partition key user_id, sort key project_id. This allows us to swap
// storage implementations without changing the core application logic.
type Repository interface {
	// SaveScrape persists a record under (record.UserID, record.ProjectID).
	SaveScrape(ctx context.Context, record domain.ScrapeRecord) error

	// GetScrapesByUser retrieves all records of a user, newest first.
	GetScrapesByUser(ctx context.Context, userID string) ([]domain.ScrapeRecord, error)

	// GetProject retrieves a single record, or ErrProjectNotFound.
	GetProject(ctx context.Context, userID, projectID string) (*domain.ScrapeRecord, error)

	// DeleteProject removes a record. Deleting a missing key is not an error.
	DeleteProject(ctx context.Context, userID, projectID string) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
