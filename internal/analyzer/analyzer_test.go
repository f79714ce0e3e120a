package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagevault/internal/domain"
)

const finalURL = "https://example.com/articles/go"

func analyzeHTML(html string) Result {
	return Analyze([]byte(html), finalURL, finalURL)
}

func TestAnalyze_HeadingCounts(t *testing.T) {
	res := analyzeHTML("<h1>A</h1><h2>B</h2><h2>C</h2>")

	assert.Equal(t, map[string]int{
		"h1": 1, "h2": 2, "h3": 0, "h4": 0, "h5": 0, "h6": 0,
	}, res.Analysis.Headings)
}

func TestAnalyze_TitleAndMeta(t *testing.T) {
	res := analyzeHTML(`<html><head>
		<title> Go Articles </title>
		<meta name="description" content="All about Go">
		<meta name="keywords" content="go,web,scraping">
		<meta property="og:image" content="https://example.com/img.png">
		<meta name="empty-content">
	</head><body></body></html>`)

	assert.Equal(t, "Go Articles", res.Title)
	assert.Equal(t, "All about Go", res.Description)
	assert.Equal(t, "go,web,scraping", res.Keywords)
	assert.Equal(t, "https://example.com/img.png", res.MetaTags["og:image"])
	assert.NotContains(t, res.MetaTags, "empty-content")
}

func TestAnalyze_DescriptionFallsBackToOpenGraph(t *testing.T) {
	res := analyzeHTML(`<head><meta property="og:description" content="OG text"></head>`)
	assert.Equal(t, "OG text", res.Description)
}

func TestAnalyze_LinksAreAbsoluteAndDeduplicated(t *testing.T) {
	res := analyzeHTML(`<body>
		<a href="/one">one</a>
		<a href="https://other.net/page">other</a>
		<a href="/one">duplicate</a>
		<a href="two.html">relative</a>
		<a href="mailto:x@example.com">mail</a>
		<a href="javascript:void(0)">js</a>
		<a href="#anchor">anchor</a>
		<img src="/img/logo.png">
	</body>`)

	assert.Equal(t, []string{
		"https://example.com/one",
		"https://other.net/page",
		"https://example.com/articles/two.html",
		"https://example.com/img/logo.png",
	}, res.Links)

	for _, link := range res.Links {
		assert.True(t, strings.HasPrefix(link, "http"), "link %q must be absolute", link)
	}
}

func TestAnalyze_TextTruncationAndCounts(t *testing.T) {
	words := strings.Repeat("word ", 1000) // 5000 chars, 1000 words
	res := analyzeHTML("<body><p>" + words + "</p></body>")

	assert.LessOrEqual(t, len(res.Content), domain.ContentMaxChars)
	assert.Equal(t, 1000, res.WordCount, "word count is computed before truncation")
	assert.Equal(t, 4999, res.CharacterCount, "character count is computed before truncation")
}

func TestAnalyze_TextStripsScriptAndStyle(t *testing.T) {
	res := analyzeHTML(`<body>
		<p>visible   text</p>
		<script>var hidden = "nope";</script>
		<style>.x { color: red }</style>
		<noscript>enable js</noscript>
	</body>`)

	assert.Equal(t, "visible text", res.Content)
	assert.Equal(t, 2, res.WordCount)
}

func TestAnalyze_StructureCounts(t *testing.T) {
	res := analyzeHTML(`<body>
		<div><div><span>s</span></div></div>
		<p>a</p><p>b</p>
		<ul><li>x</li></ul><ol><li>y</li></ol>
		<table><tr><td>c</td></tr></table>
		<img src="/a.png"><img src="/b.png">
		<form action="/search" method="POST">
			<input type="text" name="q">
			<input name="page">
		</form>
		<script src="/app.js"></script>
		<link rel="stylesheet" href="/main.css">
	</body>`)

	assert.Equal(t, 2, res.Analysis.Paragraphs)
	assert.Equal(t, 1, res.Analysis.Lists)
	assert.Equal(t, 1, res.Analysis.OrderedList)
	assert.Equal(t, 1, res.Analysis.Tables)
	assert.Equal(t, 2, res.Analysis.Divs)
	assert.Equal(t, 1, res.Analysis.Spans)
	assert.Equal(t, 2, res.Analysis.Images)
	assert.Equal(t, 1, res.Analysis.Forms)
	assert.Equal(t, 1, res.Analysis.Scripts)
	assert.Equal(t, 1, res.Analysis.Stylesheets)

	require.Len(t, res.Forms, 1)
	form := res.Forms[0]
	assert.Equal(t, "/search", form.Action)
	assert.Equal(t, "post", form.Method)
	require.Len(t, form.Inputs, 2)
	assert.Equal(t, domain.FormInput{Type: "text", Name: "q"}, form.Inputs[0])
	assert.Equal(t, domain.FormInput{Type: "text", Name: "page"}, form.Inputs[1])

	assert.Equal(t, []string{"/app.js"}, res.Scripts)
	assert.Equal(t, []string{"/main.css"}, res.Stylesheets)
	assert.Equal(t, []string{
		"https://example.com/a.png",
		"https://example.com/b.png",
	}, res.Images)
}

func TestAnalyze_FrameworkDetection(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		check func(t *testing.T, fd domain.FrameworkDetection)
	}{
		{
			name: "jquery only",
			html: `<script src="jquery.min.js"></script>`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.JQuery)
				assert.Equal(t, domain.FrameworkDetection{JQuery: true}, fd,
					"no other flag may fire")
			},
		},
		{
			name: "wordpress with woocommerce",
			html: `<link rel="stylesheet" href="/wp-content/themes/shop/style.css">
			       <div class="woocommerce-cart"></div>`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.WordPress)
				assert.True(t, fd.WooCommerce)
				assert.False(t, fd.Shopify)
			},
		},
		{
			name: "react",
			html: `<div id="app" data-reactroot=""></div>`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.React)
			},
		},
		{
			name: "angular attributes",
			html: `<body ng-app="shop"><div ng-controller="Cart"></div></body>`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.Angular)
				assert.False(t, fd.Vue)
			},
		},
		{
			name: "vue attributes",
			html: `<div v-if="ready"><span data-v-1a2b3c4d></span></div>`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.Vue)
				assert.False(t, fd.Angular)
			},
		},
		{
			name: "bootstrap stylesheet",
			html: `<link rel="stylesheet" href="/css/bootstrap.min.css">`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.Bootstrap)
			},
		},
		{
			name: "shopify cdn",
			html: `<img src="/cdn/shop/products/x.png">`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.Shopify)
			},
		},
		{
			name: "drupal settings",
			html: `<script>Drupal.settings = {};</script>`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.Drupal)
			},
		},
		{
			name: "joomla marker",
			html: `<meta name="generator" content="Joomla! - Open Source Content Management">`,
			check: func(t *testing.T, fd domain.FrameworkDetection) {
				assert.True(t, fd.Joomla)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyzeHTML(tt.html)
			tt.check(t, res.Frameworks)
		})
	}
}

func TestAnalyze_URLDecomposition(t *testing.T) {
	res := Analyze([]byte("<html></html>"),
		"https://final.example.com/landed",
		"https://example.com:8443/path/to/page?a=1&b=2&a=3")

	assert.True(t, res.HasSSL)
	assert.Equal(t, "example.com:8443", res.Domain)
	assert.Equal(t, "/path/to/page", res.Path)
	assert.Equal(t, map[string]string{"a": "3", "b": "2"}, res.QueryParams,
		"repeated keys collapse to the last value")
}

func TestAnalyze_HTTPSchemeHasNoSSL(t *testing.T) {
	res := Analyze(nil, "http://example.com", "http://example.com/page")
	assert.False(t, res.HasSSL)
	assert.Equal(t, "example.com", res.Domain)
}

func TestAnalyze_DegradesOnGarbageInput(t *testing.T) {
	res := Analyze([]byte("<<<<not <html at >>> all"), finalURL, finalURL)

	// No panic, no error: fields fall back to zero values.
	assert.Empty(t, res.Title)
	assert.Empty(t, res.Links)
	assert.Empty(t, res.MetaTags)
	assert.Equal(t, 0, res.Analysis.Paragraphs)
	assert.Equal(t, map[string]int{
		"h1": 0, "h2": 0, "h3": 0, "h4": 0, "h5": 0, "h6": 0,
	}, res.Analysis.Headings)
}

func TestAnalyze_EmptyBody(t *testing.T) {
	res := Analyze(nil, finalURL, finalURL)
	assert.Empty(t, res.Content)
	assert.Zero(t, res.WordCount)
	assert.Zero(t, res.CharacterCount)
	assert.Empty(t, res.Links)
}
