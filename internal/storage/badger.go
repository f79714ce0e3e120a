package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"pagevault/internal/domain"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened successfully")

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	return nil
}

// projectKey builds the composite key for one record.
// Format: user:{userID}:proj:{projectID}
func projectKey(userID, projectID string) []byte {
	return []byte(fmt.Sprintf("user:%s:proj:%s", userID, projectID))
}

// userPrefix is the scan prefix covering all of a user's records.
func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("user:%s:proj:", userID))
}

// SaveScrape stores a record under its (user_id, project_id) key.
func (r *BadgerRepository) SaveScrape(ctx context.Context, record domain.ScrapeRecord) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id":    record.UserID,
		"project_id": record.ProjectID,
	})

	value, err := json.Marshal(record)
	if err != nil {
		log.WithError(err).Error("Failed to marshal scrape record")
		return fmt.Errorf("failed to marshal scrape record: %w", err)
	}

	key := projectKey(record.UserID, record.ProjectID)
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save scrape record")
		return fmt.Errorf("failed to save scrape record: %w", err)
	}

	log.Info("Scrape record saved")
	return nil
}

// GetScrapesByUser retrieves all records for a user, newest first.
func (r *BadgerRepository) GetScrapesByUser(ctx context.Context, userID string) ([]domain.ScrapeRecord, error) {
	log := r.log.WithField("user_id", userID)

	var records []domain.ScrapeRecord
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := userPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var record domain.ScrapeRecord
				valCopy := make([]byte, len(val))
				copy(valCopy, val)
				if err := json.Unmarshal(valCopy, &record); err != nil {
					return fmt.Errorf("failed to unmarshal record for key %s: %w", string(item.Key()), err)
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to retrieve scrapes")
		return nil, fmt.Errorf("failed to get scrapes for user %s: %w", userID, err)
	}

	// Newest first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].ScrapedAt > records[j].ScrapedAt
	})

	log.WithField("count", len(records)).Debug("Scrapes retrieved")
	return records, nil
}

// GetProject retrieves one record by its exact key.
func (r *BadgerRepository) GetProject(ctx context.Context, userID, projectID string) (*domain.ScrapeRecord, error) {
	var record domain.ScrapeRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(projectKey(userID, projectID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrProjectNotFound
		}
		r.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"project_id": projectID,
		}).Error("Failed to retrieve project")
		return nil, fmt.Errorf("failed to get project %s for user %s: %w", projectID, userID, err)
	}
	return &record, nil
}

// DeleteProject removes a record. Delete is idempotent; removing a
// missing key succeeds.
func (r *BadgerRepository) DeleteProject(ctx context.Context, userID, projectID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(projectKey(userID, projectID))
	})
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"project_id": projectID,
		}).Error("Failed to delete project")
		return fmt.Errorf("failed to delete project %s for user %s: %w", projectID, userID, err)
	}
	return nil
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.logger.Errorf(f, v...) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.logger.Warningf(f, v...) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.logger.Infof(f, v...) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.logger.Debugf(f, v...) }
