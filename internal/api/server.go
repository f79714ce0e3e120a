// Package api exposes the single scrape/list HTTP endpoint and maps
// normalized inputs onto the scraper service and project store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"pagevault/internal/domain"
	"pagevault/internal/fetcher"
	"pagevault/internal/storage"
)

// Service is the scraping and project-store facade the router drives.
// *scraper.Service satisfies it; tests substitute stubs.
type Service interface {
	Scrape(ctx context.Context, url, userID string, retries int) (*domain.ScrapeRecord, error)
	ListProjects(ctx context.Context, userID string) ([]domain.ScrapeRecord, error)
	GetProject(ctx context.Context, userID, projectID string) (*domain.ScrapeRecord, error)
	DeleteProject(ctx context.Context, userID, projectID string) error
}

// Server routes invocations: scrape mode when url is present, single
// project mode when project_id is present, list mode otherwise.
type Server struct {
	svc Service
	log logrus.FieldLogger
	mux *http.ServeMux
}

// NewServer wires the endpoint onto an HTTP mux.
func NewServer(svc Service, logger logrus.FieldLogger) *Server {
	s := &Server{
		svc: svc,
		log: logger.WithField("component", "api"),
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.handle)
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// setCORS applies the static policy: all origins, methods and headers,
// cached for a day.
func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Max-Age", "86400")
}

// handle is the single method-agnostic endpoint.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	input := parseInput(r)

	userID := input.Params["user_id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, errorBody{
			Error:   "Missing user_id parameter",
			Message: "A user_id is required for every request",
			Usage:   "Provide user_id as a query parameter (?user_id=u1) or in the JSON body",
		})
		return
	}

	if rawURL, ok := input.Params["url"]; ok {
		s.handleScrape(w, r, rawURL, userID, clampRetries(input.Params["retries"]))
		return
	}

	if projectID, ok := input.Params["project_id"]; ok {
		if input.Method == http.MethodDelete {
			s.handleDelete(w, r, userID, projectID)
		} else {
			s.handleGetProject(w, r, userID, projectID)
		}
		return
	}

	s.handleList(w, r, userID)
}

// handleScrape validates the URL before any network activity, runs the
// pipeline and responds with a single-element array, the shape of the
// original endpoint.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request, rawURL, userID string, retries int) {
	if err := fetcher.ValidateURL(rawURL); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Error:   "Invalid URL format",
			Message: "The url parameter did not parse as an absolute http/https URL",
			Usage:   "Provide a valid URL starting with http:// or https://",
		})
		return
	}

	record, err := s.svc.Scrape(r.Context(), rawURL, userID, retries)
	if err != nil {
		s.log.WithError(err).WithField("url", rawURL).Error("Scrape request failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to scrape the URL",
			Message: "The site may be blocking automated access",
		})
		return
	}

	writeJSON(w, http.StatusOK, []domain.ScrapeRecord{*record})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	projects, err := s.svc.ListProjects(r.Context(), userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("Project listing failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to retrieve projects",
			Message: "The project store is unavailable",
		})
		return
	}
	if projects == nil {
		projects = []domain.ScrapeRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Mode:     "retrieve",
		UserID:   userID,
		Projects: projects,
		Count:    len(projects),
	})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request, userID, projectID string) {
	record, err := s.svc.GetProject(r.Context(), userID, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, errorBody{
				Error:   "Project not found",
				Message: "No project exists under this user_id and project_id",
			})
			return
		}
		s.log.WithError(err).WithField("user_id", userID).Error("Project retrieval failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to retrieve project",
			Message: "The project store is unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, userID, projectID string) {
	if err := s.svc.DeleteProject(r.Context(), userID, projectID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("Project deletion failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to delete project",
			Message: "The project store is unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Mode:      "delete",
		UserID:    userID,
		ProjectID: projectID,
		Deleted:   true,
	})
}

type listResponse struct {
	Mode     string                `json:"mode"`
	UserID   string                `json:"user_id"`
	Projects []domain.ScrapeRecord `json:"projects"`
	Count    int                   `json:"count"`
}

type deleteResponse struct {
	Mode      string `json:"mode"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Deleted   bool   `json:"deleted"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Usage   string `json:"usage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}
