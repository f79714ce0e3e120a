package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pagevault/internal/analyzer"
	"pagevault/internal/domain"
	"pagevault/internal/fetcher"
)

// curatedHeaders is the subset of response headers copied into the
// telemetry sub-record.
var curatedHeaders = []string{
	"Server",
	"Date",
	"Cache-Control",
	"Etag",
	"Content-Encoding",
	"Connection",
}

// securityHeaders are reported by presence only.
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
}

// assemble merges fetch telemetry and analyzer output into the canonical
// record. The record is complete except for the persistence outcome,
// which Scrape fills in afterwards.
func (s *Service) assemble(url, userID string, raw *fetcher.RawResult, content analyzer.Result) domain.ScrapeRecord {
	now := s.now()
	return domain.ScrapeRecord{
		URL:            url,
		Title:          content.Title,
		Description:    content.Description,
		Keywords:       content.Keywords,
		Content:        content.Content,
		Links:          content.Links,
		ContentLength:  len(content.Content),
		LinksCount:     len(content.Links),
		StatusCode:     raw.StatusCode,
		ContentType:    raw.Headers.Get("Content-Type"),
		ScrapedAt:      now.Unix(),
		ScraperVersion: s.cfg.ScraperVersion,
		Status:         domain.StatusSuccess,

		CurlInfo: buildCurlInfo(raw),

		MetaTags:    content.MetaTags,
		Images:      content.Images,
		Forms:       content.Forms,
		Scripts:     content.Scripts,
		Stylesheets: content.Stylesheets,

		ContentAnalysis:    content.Analysis,
		FrameworkDetection: content.Frameworks,

		WordCount:      content.WordCount,
		CharacterCount: content.CharacterCount,

		HasSSL:      content.HasSSL,
		Domain:      content.Domain,
		Path:        content.Path,
		QueryParams: content.QueryParams,

		UserID:    userID,
		ProjectID: newProjectID(now),
	}
}

// buildCurlInfo derives the HTTP telemetry sub-record from the raw
// fetch result.
func buildCurlInfo(raw *fetcher.RawResult) domain.CurlInfo {
	headers := make(map[string]string, len(curatedHeaders))
	for _, name := range curatedHeaders {
		if v := raw.Headers.Get(name); v != "" {
			headers[strings.ToLower(name)] = v
		}
	}

	security := make(map[string]bool, len(securityHeaders))
	for _, name := range securityHeaders {
		security[strings.ToLower(name)] = raw.Headers.Get(name) != ""
	}

	contentEncoding := strings.ToLower(raw.Headers.Get("Content-Encoding"))
	isCompressed := contentEncoding == "gzip" || contentEncoding == "br" || contentEncoding == "deflate"

	return domain.CurlInfo{
		StatusCode:      raw.StatusCode,
		ContentType:     raw.Headers.Get("Content-Type"),
		ContentLength:   len(raw.Body),
		Encoding:        raw.Encoding,
		FinalURL:        raw.FinalURL,
		WasRedirected:   raw.WasRedirected(),
		RedirectCount:   len(raw.RedirectChain),
		RedirectChain:   raw.RedirectChain,
		ElapsedMS:       raw.Elapsed.Milliseconds(),
		ResponseHeaders: headers,
		IsCompressed:    isCompressed,
		IsChunked:       strings.Contains(strings.ToLower(raw.Headers.Get("Transfer-Encoding")), "chunked"),
		SecurityHeaders: security,
	}
}

// newProjectID synthesizes the sort key: proj_<unix seconds>_<8 hex>.
// Uniqueness per user per second is overwhelmingly probable, not
// guaranteed; collisions are an accepted limitation.
func newProjectID(now time.Time) string {
	return fmt.Sprintf("proj_%d_%s", now.Unix(), uuid.NewString()[:8])
}
