package domain

// Scrape outcome status values persisted alongside each record.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ScrapeRecord is the canonical artifact of one scrape: everything the
// analyzer derived from the page plus the HTTP telemetry of the fetch.
// A record is never mutated after assembly; a re-scrape of the same URL
// produces a new record under a new ProjectID.
type ScrapeRecord struct {
	// URL is the original request URL, as submitted by the caller.
	URL string `json:"url"`

	// Title scraped from the page's <title> tag.
	Title string `json:"title"`

	// Description and Keywords come from the corresponding meta tags.
	Description string `json:"description"`
	Keywords    string `json:"keywords"`

	// Content is the cleaned page text, truncated to ContentMaxChars.
	Content string `json:"content"`

	// Links holds every absolute URL referenced by the page, deduplicated,
	// in first-seen document order.
	Links []string `json:"links"`

	ContentLength int `json:"content_length"`
	LinksCount    int `json:"links_count"`

	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`

	// ScrapedAt is a unix timestamp (seconds).
	ScrapedAt      int64  `json:"scraped_at"`
	ScraperVersion string `json:"scraper_version"`

	// Status is StatusSuccess or StatusFailed. Failed-scrape markers carry
	// ErrorMessage and zero values for the analysis fields.
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CurlInfo CurlInfo `json:"curl_info"`

	MetaTags    map[string]string `json:"meta_tags"`
	Images      []string          `json:"images"`
	Forms       []Form            `json:"forms"`
	Scripts     []string          `json:"scripts"`
	Stylesheets []string          `json:"stylesheets"`

	ContentAnalysis    ContentAnalysis    `json:"content_analysis"`
	FrameworkDetection FrameworkDetection `json:"framework_detection"`

	// Word and character counts are computed on the full cleaned text,
	// before the Content truncation is applied.
	WordCount      int `json:"word_count"`
	CharacterCount int `json:"character_count"`

	// Decomposition of the original request URL.
	HasSSL      bool              `json:"has_ssl"`
	Domain      string            `json:"domain"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"query_params"`

	// UserID is the partition key; ProjectID the sort key.
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`

	// SavedToDynamoDB reports the best-effort persistence outcome. The name
	// is the wire contract of the original deployment; a false value never
	// blocks returning the record to the caller.
	SavedToDynamoDB bool   `json:"saved_to_dynamodb"`
	SaveError       string `json:"save_error,omitempty"`
}

// ContentMaxChars bounds the stored Content field.
const ContentMaxChars = 2000

// CurlInfo is the HTTP telemetry sub-record of a scrape.
type CurlInfo struct {
	StatusCode    int    `json:"status_code"`
	ContentType   string `json:"content_type"`
	ContentLength int    `json:"content_length"`
	Encoding      string `json:"encoding"`
	FinalURL      string `json:"final_url"`

	WasRedirected bool     `json:"was_redirected"`
	RedirectCount int      `json:"redirect_count"`
	RedirectChain []string `json:"redirect_chain"`

	ElapsedMS int64 `json:"elapsed_ms"`

	// ResponseHeaders is a curated subset of the response headers
	// (server, date, cache-control, etag, content-encoding, connection).
	ResponseHeaders map[string]string `json:"response_headers"`

	IsCompressed bool `json:"is_compressed"`
	IsChunked    bool `json:"is_chunked"`

	// SecurityHeaders records the presence of common security headers.
	SecurityHeaders map[string]bool `json:"security_headers"`
}

// Form describes one <form> element and its input descriptors.
type Form struct {
	Action string      `json:"action"`
	Method string      `json:"method"`
	Inputs []FormInput `json:"inputs"`
}

// FormInput is a single <input> within a form.
type FormInput struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ContentAnalysis holds the structural counts of the page.
type ContentAnalysis struct {
	// Headings maps "h1".."h6" to their counts; all six keys are always present.
	Headings    map[string]int `json:"headings"`
	Paragraphs  int            `json:"paragraphs"`
	Lists       int            `json:"lists"`
	OrderedList int            `json:"ordered_lists"`
	Tables      int            `json:"tables"`
	Divs        int            `json:"divs"`
	Spans       int            `json:"spans"`
	Images      int            `json:"images"`
	Forms       int            `json:"forms"`
	Scripts     int            `json:"scripts"`
	Stylesheets int            `json:"stylesheets"`
}

// FrameworkDetection flags web technologies inferred from page markup.
// Flags are independent; several can be true for one page.
type FrameworkDetection struct {
	WordPress   bool `json:"wordpress"`
	React       bool `json:"react"`
	Angular     bool `json:"angular"`
	Vue         bool `json:"vue"`
	JQuery      bool `json:"jquery"`
	Bootstrap   bool `json:"bootstrap"`
	Shopify     bool `json:"shopify"`
	WooCommerce bool `json:"woocommerce"`
	Drupal      bool `json:"drupal"`
	Joomla      bool `json:"joomla"`
}
