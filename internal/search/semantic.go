// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,year,venue,externalIds"

// SemanticScholar retrieves abstracts from the Semantic Scholar API. Each
// paper with an abstract becomes one evidence item. It makes a single
// request per call; retries belong to the caller's executor.
type SemanticScholar struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// NewSemanticScholar builds a retriever from cfg.
func NewSemanticScholar(cfg types.SearchConfig) *SemanticScholar {
	return &SemanticScholar{
		Client:    httputil.NewClient(cfg.HTTPConfig),
		APIKey:    cfg.SemanticScholarAPIKey,
		UserAgent: cfg.UserAgent,
	}
}

// Retrieve queries the API with the rewritten query and its year, venue and
// field filters. Scores are position-based: the API's first hit scores 1.0.
func (s *SemanticScholar) Retrieve(ctx context.Context, rw types.RewriteResult, limit int) ([]types.EvidenceItem, error) {
	q := strings.TrimSpace(rw.Query())
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}
	if rw.Filters.Years != nil {
		params.Set("year", fmt.Sprintf("%d-%d", rw.Filters.Years.Min, rw.Filters.Years.Max))
	}
	if len(rw.Filters.Venues) > 0 {
		params.Set("venue", strings.Join(rw.Filters.Venues, ","))
	}
	if len(rw.Filters.Fields) > 0 {
		params.Set("fieldsOfStudy", strings.Join(rw.Filters.Fields, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httputil.SetUserAgent(req, s.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.Do(ctx, client, req)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}

	var sr semanticResponse
	if err := httputil.DecodeJSON(resp, &sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var papers []semanticPaper
	for _, p := range sr.Data {
		if strings.TrimSpace(p.Abstract) != "" {
			papers = append(papers, p)
		}
	}

	items := make([]types.EvidenceItem, 0, len(papers))
	for i, p := range papers {
		items = append(items, p.evidence(positionScore(i, len(papers))))
	}
	return items, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	Abstract    string              `json:"abstract"`
	Year        int                 `json:"year"`
	Venue       string              `json:"venue"`
	Authors     []semanticAuthor    `json:"authors"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

// sourceID prefers the DOI, then the arXiv ID, then the Semantic Scholar ID,
// so the same paper keeps its identity across retrieval collaborators.
func (p semanticPaper) sourceID() string {
	switch {
	case p.ExternalIDs.DOI != "":
		return p.ExternalIDs.DOI
	case p.ExternalIDs.ArXiv != "":
		return p.ExternalIDs.ArXiv
	default:
		return p.PaperID
	}
}

func (p semanticPaper) evidence(score float64) types.EvidenceItem {
	doc := types.Document{
		SourceID: p.sourceID(),
		Title:    p.Title,
		Year:     p.Year,
		Venue:    p.Venue,
	}
	for _, a := range p.Authors {
		doc.Authors = append(doc.Authors, a.Name)
	}

	it := types.EvidenceItem{
		ID:       types.EvidenceID(doc.SourceID, 0),
		SourceID: doc.SourceID,
		Citation: doc.Citation(),
		Score:    score,
		Text:     strings.TrimSpace(p.Abstract),
	}
	if p.Year > 0 {
		it.Year = types.IntPtr(p.Year)
	}
	if p.Venue != "" {
		it.Venue = types.StringPtr(p.Venue)
	}
	return it
}
