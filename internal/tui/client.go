package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// TableQuery selects one page of a statistics table.
type TableQuery struct {
	Kind      models.Kind
	Snapshot  string
	CompareTo string
	Focus     string

	// MinSeverity hides rows that grew less than this severity.
	MinSeverity string

	// Sort is sent when its order is set; otherwise the server default applies.
	Sort table.SortState

	Paging bool
	Limit  int
	Offset int
}

// TablePage is one page of a statistics table as served by the API.
type TablePage struct {
	Kind        models.Kind     `json:"kind"`
	Snapshot    string          `json:"snapshot"`
	Compare     string          `json:"compare,omitempty"`
	Headers     table.Headers   `json:"headers"`
	Sort        table.SortState `json:"sort"`
	TotalSeries int64           `json:"totalSeries"`
	MaxSeverity string          `json:"maxSeverity"`
	Rows        []table.Row     `json:"data"`
	Total       int             `json:"total"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
	HasMore     bool            `json:"has_more"`
}

// Fetcher loads table pages.
type Fetcher interface {
	Table(ctx context.Context, q TableQuery) (*TablePage, error)
}

// Client talks to the explorer REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL (for example
// http://localhost:8080).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Table fetches one table page.
func (c *Client) Table(ctx context.Context, q TableQuery) (*TablePage, error) {
	params := url.Values{}
	if q.Snapshot != "" {
		params.Set("snapshot", q.Snapshot)
	}
	if q.CompareTo != "" {
		params.Set("compare", q.CompareTo)
	}
	if q.Focus != "" {
		params.Set("focus", q.Focus)
	}
	if q.MinSeverity != "" {
		params.Set("minSeverity", q.MinSeverity)
	}
	if q.Sort.Order.Valid() {
		params.Set("orderBy", q.Sort.OrderBy.String())
		params.Set("order", string(q.Sort.Order))
	}
	params.Set("paging", strconv.FormatBool(q.Paging))
	if q.Paging {
		if q.Limit > 0 {
			params.Set("limit", strconv.Itoa(q.Limit))
		}
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	endpoint := fmt.Sprintf("%s/api/v1/cardinality/%s?%s", c.baseURL, url.PathEscape(string(q.Kind)), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return nil, fmt.Errorf("fetching table: %s", resp.Status)
		}
		return nil, fmt.Errorf("fetching table: %s: %s", resp.Status, apiErr.Error)
	}

	var page TablePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding table: %w", err)
	}
	return &page, nil
}
