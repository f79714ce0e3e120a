package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagevault/internal/config"
	"pagevault/internal/domain"
	"pagevault/internal/fetcher"
)

var projectIDPattern = regexp.MustCompile(`^proj_\d+_[0-9a-f]{8}$`)

// stubPipeline is a scripted fetch pipeline.
type stubPipeline struct {
	res   *fetcher.RawResult
	err   error
	calls int
}

func (s *stubPipeline) Execute(ctx context.Context, url string, maxAttempts int) (*fetcher.RawResult, error) {
	s.calls++
	return s.res, s.err
}

// stubRepo records saves and replays configured results.
type stubRepo struct {
	saved   []domain.ScrapeRecord
	saveErr error
}

func (r *stubRepo) SaveScrape(ctx context.Context, record domain.ScrapeRecord) error {
	r.saved = append(r.saved, record)
	return r.saveErr
}

func (r *stubRepo) GetScrapesByUser(ctx context.Context, userID string) ([]domain.ScrapeRecord, error) {
	return nil, nil
}

func (r *stubRepo) GetProject(ctx context.Context, userID, projectID string) (*domain.ScrapeRecord, error) {
	return nil, nil
}

func (r *stubRepo) DeleteProject(ctx context.Context, userID, projectID string) error {
	return nil
}

func (r *stubRepo) Close() error { return nil }

func testService(pipeline Pipeline, repo *stubRepo) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Service{
		cfg:         config.Config{ScraperVersion: "1.0.0"},
		repo:        repo,
		log:         log,
		now:         func() time.Time { return time.Unix(1700000000, 0) },
		newPipeline: func() Pipeline { return pipeline },
	}
}

func okResult() *fetcher.RawResult {
	headers := http.Header{}
	headers.Set("Content-Type", "text/html; charset=utf-8")
	headers.Set("Server", "nginx")
	headers.Set("Content-Encoding", "gzip")
	headers.Set("Strict-Transport-Security", "max-age=63072000")
	return &fetcher.RawResult{
		StatusCode:    http.StatusOK,
		FinalURL:      "https://example.com/final",
		RedirectChain: []string{"https://example.com/start"},
		Headers:       headers,
		Body: []byte(`<html><head><title>Example</title>
			<meta name="description" content="A test page"></head>
			<body><h1>Hi</h1><a href="/next">next</a></body></html>`),
		Elapsed:  1500 * time.Millisecond,
		Encoding: "utf-8",
	}
}

func TestService_Scrape_AssemblesFullRecord(t *testing.T) {
	repo := &stubRepo{}
	svc := testService(&stubPipeline{res: okResult()}, repo)

	record, err := svc.Scrape(context.Background(), "https://example.com/start?x=1", "u1", 3)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "https://example.com/start?x=1", record.URL)
	assert.Equal(t, "Example", record.Title)
	assert.Equal(t, "A test page", record.Description)
	assert.Equal(t, http.StatusOK, record.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", record.ContentType)
	assert.Equal(t, int64(1700000000), record.ScrapedAt)
	assert.Equal(t, "1.0.0", record.ScraperVersion)
	assert.Equal(t, domain.StatusSuccess, record.Status)
	assert.Equal(t, "u1", record.UserID)
	assert.Regexp(t, projectIDPattern, record.ProjectID)
	assert.LessOrEqual(t, len(record.Content), domain.ContentMaxChars)

	// Links resolve against the final URL, not the request URL.
	assert.Contains(t, record.Links, "https://example.com/next")
	assert.Equal(t, len(record.Links), record.LinksCount)

	// URL decomposition comes from the request URL.
	assert.True(t, record.HasSSL)
	assert.Equal(t, "example.com", record.Domain)
	assert.Equal(t, "/start", record.Path)
	assert.Equal(t, map[string]string{"x": "1"}, record.QueryParams)

	// Telemetry sub-record.
	assert.Equal(t, http.StatusOK, record.CurlInfo.StatusCode)
	assert.Equal(t, "https://example.com/final", record.CurlInfo.FinalURL)
	assert.True(t, record.CurlInfo.WasRedirected)
	assert.Equal(t, 1, record.CurlInfo.RedirectCount)
	assert.Equal(t, int64(1500), record.CurlInfo.ElapsedMS)
	assert.Equal(t, "nginx", record.CurlInfo.ResponseHeaders["server"])
	assert.True(t, record.CurlInfo.IsCompressed)
	assert.True(t, record.CurlInfo.SecurityHeaders["strict-transport-security"])
	assert.False(t, record.CurlInfo.SecurityHeaders["content-security-policy"])

	// Persisted exactly once, flagged on the returned record.
	require.Len(t, repo.saved, 1)
	assert.True(t, record.SavedToDynamoDB)
	assert.Empty(t, record.SaveError)
}

func TestService_Scrape_PersistenceFailureIsBestEffort(t *testing.T) {
	repo := &stubRepo{saveErr: errors.New("store down")}
	svc := testService(&stubPipeline{res: okResult()}, repo)

	record, err := svc.Scrape(context.Background(), "https://example.com", "u1", 3)
	require.NoError(t, err, "a persistence failure must never fail the scrape")
	require.NotNil(t, record)

	assert.False(t, record.SavedToDynamoDB)
	assert.Equal(t, "store down", record.SaveError)
	assert.Equal(t, "Example", record.Title, "the record is still fully assembled")
}

func TestService_Scrape_ExhaustedWritesFailedMarker(t *testing.T) {
	cause := &fetcher.ExhaustedError{Attempts: 3, LastErr: errors.New("timeout")}
	repo := &stubRepo{}
	svc := testService(&stubPipeline{err: cause}, repo)

	record, err := svc.Scrape(context.Background(), "https://blocked.example.com", "u1", 3)
	require.Error(t, err)
	assert.Nil(t, record)

	var exhausted *fetcher.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	require.Len(t, repo.saved, 1, "a failed-scrape marker must be persisted")
	marker := repo.saved[0]
	assert.Equal(t, domain.StatusFailed, marker.Status)
	assert.Equal(t, "https://blocked.example.com", marker.URL)
	assert.Equal(t, "u1", marker.UserID)
	assert.Regexp(t, projectIDPattern, marker.ProjectID)
	assert.Contains(t, marker.ErrorMessage, "retries exhausted")
}

func TestService_Scrape_FailedMarkerSaveErrorIsSwallowed(t *testing.T) {
	cause := &fetcher.ExhaustedError{Attempts: 2, LastErr: errors.New("refused")}
	repo := &stubRepo{saveErr: errors.New("store down")}
	svc := testService(&stubPipeline{err: cause}, repo)

	_, err := svc.Scrape(context.Background(), "https://example.com", "u1", 2)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "store down", "the scrape error must win")
}

func TestNewProjectID_Format(t *testing.T) {
	now := time.Unix(1700000000, 0)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newProjectID(now)
		assert.Regexp(t, projectIDPattern, id)
		seen[id] = true
	}
	assert.Len(t, seen, 100, "ids generated in the same second must still differ")
}
