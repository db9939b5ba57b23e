package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
	"golang.org/x/time/rate"
)

// HTTPSource talks to a catalogue exposing the Watari JSON API
// (/search, /series, /chapters). Requests are rate limited per source to
// respect catalogue limits.
type HTTPSource struct {
	id         string
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPSource creates a source for the configured catalogue endpoint.
func NewHTTPSource(cfg shared.SourceConfig, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 3.0
	}
	return &HTTPSource{
		id:         cfg.ID,
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
	}
}

func (s *HTTPSource) ID() string   { return s.id }
func (s *HTTPSource) Name() string { return s.name }

type searchResponse struct {
	Results []struct {
		URL          string `json:"url"`
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	} `json:"results"`
}

// Search queries the catalogue by title.
func (s *HTTPSource) Search(ctx context.Context, query string) ([]Candidate, error) {
	var parsed searchResponse
	if err := s.get(ctx, "/search", url.Values{"q": {query}}, &parsed); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		candidates = append(candidates, Candidate{
			SourceID:     s.id,
			URL:          r.URL,
			Title:        r.Title,
			ThumbnailURL: r.ThumbnailURL,
		})
	}
	return candidates, nil
}

type seriesResponse struct {
	Author       string `json:"author"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	Status       string `json:"status"`
}

// FetchDetails retrieves full metadata for a candidate.
func (s *HTTPSource) FetchDetails(ctx context.Context, candidate Candidate) (*Metadata, error) {
	var parsed seriesResponse
	if err := s.get(ctx, "/series", url.Values{"url": {candidate.URL}}, &parsed); err != nil {
		return nil, err
	}

	return &Metadata{
		Author:       parsed.Author,
		Description:  parsed.Description,
		ThumbnailURL: parsed.ThumbnailURL,
		Status:       parseStatus(parsed.Status),
	}, nil
}

type chapterResponse struct {
	Chapters []struct {
		URL        string     `json:"url"`
		Name       string     `json:"name"`
		Scanlator  string     `json:"scanlator"`
		UploadedAt *time.Time `json:"uploaded_at"`
	} `json:"chapters"`
}

// FetchChapterList retrieves the candidate's chapters in catalogue order.
func (s *HTTPSource) FetchChapterList(ctx context.Context, candidate Candidate) ([]models.ChapterRecord, error) {
	var parsed chapterResponse
	if err := s.get(ctx, "/chapters", url.Values{"url": {candidate.URL}}, &parsed); err != nil {
		return nil, err
	}

	chapters := make([]models.ChapterRecord, 0, len(parsed.Chapters))
	for _, c := range parsed.Chapters {
		record := models.NewChapterRecord(0, c.URL, c.Name)
		record.Scanlator = c.Scanlator
		if c.UploadedAt != nil {
			record.DateUpload = *c.UploadedAt
		}
		chapters = append(chapters, record)
	}
	return chapters, nil
}

// get performs a rate-limited GET against the catalogue and decodes the JSON body.
func (s *HTTPSource) get(ctx context.Context, path string, params url.Values, target any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	fullURL := s.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", shared.ErrSourceUnavailable, s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: invalid response from %s: %v", shared.ErrSourceUnavailable, s.name, err)
	}

	return nil
}

func parseStatus(s string) models.PublicationStatus {
	switch s {
	case "ongoing":
		return models.StatusOngoing
	case "completed":
		return models.StatusCompleted
	case "licensed":
		return models.StatusLicensed
	default:
		return models.StatusUnknown
	}
}
