// Package analyzer turns a fetched HTML body into the structured
// content fields of a ScrapeRecord. Analysis never fails: malformed or
// missing structure degrades the affected field to its zero value.
package analyzer

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"pagevault/internal/domain"
)

// Result carries every content-derived field of a ScrapeRecord.
type Result struct {
	Title       string
	Description string
	Keywords    string

	// Content is the cleaned text truncated to domain.ContentMaxChars;
	// WordCount and CharacterCount are computed before truncation.
	Content        string
	WordCount      int
	CharacterCount int

	Links       []string
	MetaTags    map[string]string
	Images      []string
	Forms       []domain.Form
	Scripts     []string
	Stylesheets []string

	Analysis   domain.ContentAnalysis
	Frameworks domain.FrameworkDetection

	HasSSL      bool
	Domain      string
	Path        string
	QueryParams map[string]string
}

// Analyze parses body and derives all content fields. Relative links
// resolve against finalURL; the URL decomposition fields come from
// requestURL, the address the caller actually asked for.
func Analyze(body []byte, finalURL, requestURL string) Result {
	res := Result{
		MetaTags:    map[string]string{},
		QueryParams: map[string]string{},
		Analysis:    domain.ContentAnalysis{Headings: emptyHeadings()},
	}
	decomposeURL(requestURL, &res)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// Parse failure degrades every content field to its zero value.
		return res
	}

	base, _ := url.Parse(finalURL)

	res.Title = strings.TrimSpace(doc.Find("title").First().Text())
	extractMeta(doc, &res)
	extractLinks(doc, base, &res)
	extractAssets(doc, base, &res)
	extractForms(doc, &res)
	countStructure(doc, &res)
	detectFrameworks(doc, string(body), &res)
	extractText(doc, &res)

	return res
}

func emptyHeadings() map[string]int {
	return map[string]int{"h1": 0, "h2": 0, "h3": 0, "h4": 0, "h5": 0, "h6": 0}
}

// extractText strips script/style/noscript nodes, collapses whitespace
// and truncates the stored content. Runs last because it mutates the
// document.
func extractText(doc *goquery.Document, res *Result) {
	doc.Find("script, style, noscript").Remove()

	full := strings.Join(strings.Fields(doc.Text()), " ")
	res.WordCount = len(strings.Fields(full))
	res.CharacterCount = utf8.RuneCountInString(full)

	if res.CharacterCount > domain.ContentMaxChars {
		res.Content = string([]rune(full)[:domain.ContentMaxChars])
	} else {
		res.Content = full
	}
}

// extractMeta collects every <meta name|property=... content=...> pair,
// which covers Open Graph and Twitter card tags.
func extractMeta(doc *goquery.Document, res *Result) {
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		key, ok := s.Attr("name")
		if !ok {
			key, ok = s.Attr("property")
		}
		if !ok || key == "" {
			return
		}
		res.MetaTags[key] = content
	})

	res.Description = res.MetaTags["description"]
	if res.Description == "" {
		res.Description = res.MetaTags["og:description"]
	}
	res.Keywords = res.MetaTags["keywords"]
}

// extractLinks collects every href/src attribute resolvable to an
// absolute http/https URL, deduplicated, in first-seen document order.
func extractLinks(doc *goquery.Document, base *url.URL, res *Result) {
	seen := make(map[string]struct{})
	doc.Find("[href], [src]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src"} {
			raw, ok := s.Attr(attr)
			if !ok {
				continue
			}
			abs, ok := resolveURL(base, raw)
			if !ok {
				continue
			}
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			res.Links = append(res.Links, abs)
		}
	})
}

// extractAssets inventories images, external scripts and stylesheets.
// Script and stylesheet entries keep their raw attribute values since
// those also feed framework detection.
func extractAssets(doc *goquery.Document, base *url.URL, res *Result) {
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("src")
		if abs, ok := resolveURL(base, raw); ok {
			res.Images = append(res.Images, abs)
		}
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			res.Scripts = append(res.Scripts, src)
		}
	})
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			res.Stylesheets = append(res.Stylesheets, href)
		}
	})
}

func extractForms(doc *goquery.Document, res *Result) {
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		form := domain.Form{
			Action: f.AttrOr("action", ""),
			Method: strings.ToLower(f.AttrOr("method", "get")),
		}
		f.Find("input").Each(func(_ int, in *goquery.Selection) {
			form.Inputs = append(form.Inputs, domain.FormInput{
				Type: in.AttrOr("type", "text"),
				Name: in.AttrOr("name", ""),
			})
		})
		res.Forms = append(res.Forms, form)
	})
}

func countStructure(doc *goquery.Document, res *Result) {
	for level := 1; level <= 6; level++ {
		sel := fmt.Sprintf("h%d", level)
		res.Analysis.Headings[sel] = doc.Find(sel).Length()
	}
	res.Analysis.Paragraphs = doc.Find("p").Length()
	res.Analysis.Lists = doc.Find("ul").Length()
	res.Analysis.OrderedList = doc.Find("ol").Length()
	res.Analysis.Tables = doc.Find("table").Length()
	res.Analysis.Divs = doc.Find("div").Length()
	res.Analysis.Spans = doc.Find("span").Length()
	res.Analysis.Images = doc.Find("img").Length()
	res.Analysis.Forms = doc.Find("form").Length()
	res.Analysis.Scripts = doc.Find("script").Length()
	res.Analysis.Stylesheets = doc.Find(`link[rel="stylesheet"]`).Length()
}

// detectFrameworks applies the fixed signature table against script
// sources, stylesheet hrefs, element attributes and the raw markup.
// Flags are independent; several can be true for one page.
func detectFrameworks(doc *goquery.Document, rawHTML string, res *Result) {
	scriptSrcs := strings.ToLower(strings.Join(res.Scripts, " "))
	styleHrefs := strings.ToLower(strings.Join(res.Stylesheets, " "))
	markup := rawHTML

	res.Frameworks.WordPress = strings.Contains(markup, "wp-content")
	res.Frameworks.React = strings.Contains(markup, "data-reactroot")
	res.Frameworks.JQuery = strings.Contains(scriptSrcs, "jquery")
	res.Frameworks.Bootstrap = strings.Contains(styleHrefs, "bootstrap")
	res.Frameworks.Shopify = strings.Contains(markup, "/cdn/shop") || strings.Contains(markup, "Shopify.")
	res.Frameworks.WooCommerce = strings.Contains(markup, "woocommerce")
	res.Frameworks.Drupal = strings.Contains(markup, "Drupal.settings")
	res.Frameworks.Joomla = strings.Contains(markup, "Joomla!")

	// Angular and Vue announce themselves through attribute prefixes.
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range s.Get(0).Attr {
			if strings.HasPrefix(attr.Key, "ng-") {
				res.Frameworks.Angular = true
			}
			if strings.HasPrefix(attr.Key, "v-") || strings.HasPrefix(attr.Key, "data-v-") {
				res.Frameworks.Vue = true
			}
		}
		return !(res.Frameworks.Angular && res.Frameworks.Vue)
	})
}

// resolveURL resolves raw against base and reports whether the result
// is an absolute http/https URL worth keeping.
func resolveURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") ||
		strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "data:") ||
		strings.HasPrefix(raw, "#") {
		return "", false
	}
	if base == nil {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", false
		}
		return u.String(), true
	}
	u, err := base.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// decomposeURL fills the request-URL derived fields. Repeated query
// keys collapse to the last value, standard query-string semantics.
func decomposeURL(requestURL string, res *Result) {
	u, err := url.Parse(requestURL)
	if err != nil {
		return
	}
	res.HasSSL = u.Scheme == "https"
	res.Domain = u.Host
	res.Path = u.Path
	for key, values := range u.Query() {
		if len(values) > 0 {
			res.QueryParams[key] = values[len(values)-1]
		}
	}
}
