package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"pagevault/internal/config"
)

// ParsedInput is the normalized invocation: HTTP method plus a flat
// parameter map, whether the parameters arrived as a query string or a
// JSON body. The router never inspects transport details beyond this.
type ParsedInput struct {
	Method string
	Params map[string]string
}

// bodyParams mirrors the accepted JSON body fields. Retries is decoded
// loosely because callers send it both as a number and as a string.
type bodyParams struct {
	URL       string `json:"url"`
	UserID    string `json:"user_id"`
	Retries   any    `json:"retries"`
	ProjectID string `json:"project_id"`
}

// parseInput normalizes an incoming request. Query parameters always
// apply; a JSON body overlays them on POST. A malformed body is
// ignored, matching the tolerant behaviour of the original endpoint.
func parseInput(r *http.Request) ParsedInput {
	params := map[string]string{}
	query := r.URL.Query()
	for _, key := range []string{"url", "user_id", "retries", "project_id"} {
		if v := query.Get(key); v != "" {
			params[key] = v
		}
	}

	if r.Method == http.MethodPost && r.Body != nil {
		var body bodyParams
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if body.URL != "" {
				params["url"] = body.URL
			}
			if body.UserID != "" {
				params["user_id"] = body.UserID
			}
			if body.ProjectID != "" {
				params["project_id"] = body.ProjectID
			}
			if body.Retries != nil {
				params["retries"] = fmt.Sprint(body.Retries)
			}
		}
	}

	return ParsedInput{Method: r.Method, Params: params}
}

// clampRetries parses the retries parameter. Absent, non-integer or
// out-of-range values clamp to the default rather than failing the
// request.
func clampRetries(raw string) int {
	if raw == "" {
		return config.DefaultRetries
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < config.MinRetries || n > config.MaxRetries {
		return config.DefaultRetries
	}
	return n
}
