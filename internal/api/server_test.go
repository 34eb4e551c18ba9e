package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidde/cardinality_explorer/internal/collector"
	"github.com/fidde/cardinality_explorer/internal/explorer"
	"github.com/fidde/cardinality_explorer/internal/storage/memory"
	"github.com/fidde/cardinality_explorer/internal/storage/storagetest"
	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// staticSource serves a fixed live state.
type staticSource struct {
	live *models.Snapshot
}

func (s *staticSource) Snapshot(id string, now time.Time) *models.Snapshot {
	out := models.NewSnapshot(id, now)
	out.TotalSeries = s.live.TotalSeries
	for k, entries := range s.live.Entries {
		out.Entries[k] = append([]models.Entry(nil), entries...)
	}
	return out
}

func (s *staticSource) Reset() {}

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	source := &staticSource{live: storagetest.Snapshot("live", time.Now(), 2)}
	svc := explorer.New(memory.New(), source, explorer.DefaultConfig(), slogt.New(t))
	return NewServer(":0", svc, nil, slogt.New(t))
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

type tableBody struct {
	Data        []table.Row     `json:"data"`
	Total       int             `json:"total"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
	HasMore     bool            `json:"has_more"`
	Kind        models.Kind     `json:"kind"`
	Snapshot    string          `json:"snapshot"`
	Compare     string          `json:"compare"`
	Headers     table.Headers   `json:"headers"`
	Sort        table.SortState `json:"sort"`
	TotalSeries int64           `json:"totalSeries"`
	MaxSeverity string          `json:"maxSeverity"`
	Paging      bool            `json:"paging"`
}

func rowNames(rows []table.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Run("without collector", func(t *testing.T) {
		s := setupTestServer(t)
		rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[HealthResponse](t, rec)
		assert.Equal(t, "ok", body.Status)
		assert.Nil(t, body.Collector)
	})

	t.Run("with collector", func(t *testing.T) {
		coll := collector.New(collector.DefaultConfig())
		coll.Observe("up", map[string]string{"job": "api"})

		svc := explorer.New(memory.New(), coll, explorer.DefaultConfig(), slogt.New(t))
		s := NewServer(":0", svc, coll, slogt.New(t))

		rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[HealthResponse](t, rec)
		require.NotNil(t, body.Collector)
		assert.Equal(t, int64(1), body.Collector.Observed)
		assert.Equal(t, 1, body.Collector.Metrics)
	})
}

func TestGetTable(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/cardinality/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[tableBody](t, rec)
	assert.Equal(t, models.KindMetrics, body.Kind)
	assert.Equal(t, explorer.LiveSnapshotID, body.Snapshot)
	assert.Equal(t, []string{"http_requests_total", "up"}, rowNames(body.Data))
	assert.Equal(t, table.SortState{OrderBy: table.ColumnValue, Order: table.Descending}, body.Sort)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 100, body.Limit)
	assert.False(t, body.HasMore)
	assert.True(t, body.Paging)
	assert.Equal(t, int64(200), body.TotalSeries)
	assert.Equal(t, models.SeverityInfo, body.MaxSeverity)
	assert.Equal(t, explorer.Headers(models.KindMetrics), body.Headers)
}

func TestGetTable_PaginationAfterSort(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/cardinality/pairs?orderBy=value&order=asc&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[tableBody](t, rec)
	assert.Equal(t, []string{"job=db"}, rowNames(body.Data))
	assert.True(t, body.HasMore)
	assert.Equal(t, 2, body.Total)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cardinality/pairs?orderBy=value&order=asc&limit=1&offset=1", "")
	body = decode[tableBody](t, rec)
	assert.Equal(t, []string{"job=api"}, rowNames(body.Data))
	assert.False(t, body.HasMore)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cardinality/pairs?offset=5", "")
	body = decode[tableBody](t, rec)
	assert.Empty(t, body.Data)
	assert.Equal(t, 2, body.Total)
}

func TestGetTable_PagingDisabled(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/cardinality/labels?paging=false&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[tableBody](t, rec)
	assert.False(t, body.Paging)
	assert.Len(t, body.Data, 2)
	assert.False(t, body.HasMore)
}

func TestGetTable_FocusAndTopN(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/cardinality/pairs?focus=job&topN=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[tableBody](t, rec)
	assert.Equal(t, []string{"api"}, rowNames(body.Data))
	assert.Equal(t, "pair:job=api", body.Data[0].Actions)
}

func TestGetTable_BadRequests(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown kind", "/api/v1/cardinality/traces", http.StatusBadRequest},
		{"unknown column", "/api/v1/cardinality/metrics?orderBy=colour", http.StatusBadRequest},
		{"unknown order", "/api/v1/cardinality/metrics?order=up", http.StatusBadRequest},
		{"negative topN", "/api/v1/cardinality/metrics?topN=-1", http.StatusBadRequest},
		{"bad paging", "/api/v1/cardinality/metrics?paging=maybe", http.StatusBadRequest},
		{"unknown severity", "/api/v1/cardinality/metrics?minSeverity=fatal", http.StatusBadRequest},
		{"missing snapshot", "/api/v1/cardinality/metrics?snapshot=nope", http.StatusNotFound},
		{"missing compare", "/api/v1/cardinality/metrics?compare=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)

			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetHeaders(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/cardinality/label_values/headers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Kind        models.Kind     `json:"kind"`
		Headers     table.Headers   `json:"headers"`
		DefaultSort table.SortState `json:"defaultSort"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, explorer.Headers(models.KindLabelValues), body.Headers)
	assert.Equal(t, table.ColumnValue, body.DefaultSort.OrderBy)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cardinality/nope/headers", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestSort(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		body string
		want table.SortState
	}{
		{
			name: "same column toggles",
			body: `{"state":{"orderBy":"value","order":"desc"},"column":"value"}`,
			want: table.SortState{OrderBy: table.ColumnValue, Order: table.Ascending},
		},
		{
			name: "new column starts ascending",
			body: `{"state":{"orderBy":"value","order":"desc"},"column":"diff"}`,
			want: table.SortState{OrderBy: table.ColumnDiff, Order: table.Ascending},
		},
		{
			name: "non-sortable column is ignored",
			body: `{"state":{"orderBy":"diff","order":"desc"},"column":"actions"}`,
			want: table.SortState{OrderBy: table.ColumnDiff, Order: table.Descending},
		},
		{
			name: "missing state uses default",
			body: `{"column":"value"}`,
			want: table.SortState{OrderBy: table.ColumnValue, Order: table.Ascending},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/cardinality/metrics/sort", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, decode[table.SortState](t, rec))
		})
	}
}

func TestRequestSort_BadRequests(t *testing.T) {
	s := setupTestServer(t)

	for name, body := range map[string]string{
		"unknown column": `{"column":"colour"}`,
		"missing column": `{"state":{"orderBy":"value","order":"desc"}}`,
		"unknown order":  `{"state":{"orderBy":"value","order":"up"},"column":"value"}`,
		"missing order":  `{"state":{"orderBy":"value"},"column":"value"}`,
		"not json":       `{`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/cardinality/metrics/sort", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/cardinality/spans/sort", `{"column":"value"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshots(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/snapshots", `{"id":"baseline"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	meta := decode[models.SnapshotMetadata](t, rec)
	assert.Equal(t, "baseline", meta.ID)
	assert.Equal(t, int64(200), meta.TotalSeries)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/snapshots", `{"id":"baseline"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/snapshots", `{"id":"Not Valid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/snapshots", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Regexp(t, `^manual-\d+$`, decode[models.SnapshotMetadata](t, rec).ID)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data  []models.SnapshotMetadata `json:"data"`
		Total int                       `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 2, list.Total)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/snapshots/baseline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[models.Snapshot](t, rec)
	assert.Len(t, snap.Entries[models.KindMetrics], 2)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/snapshots/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/snapshots/baseline", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/snapshots/baseline", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/snapshots/baseline", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordUsage(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/usage", `{"names":["up"],"timestamp":1700000000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cardinality/metrics?orderBy=requestsCount&order=desc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[tableBody](t, rec)
	assert.Equal(t, "up", body.Data[0].Name)
	assert.Equal(t, int64(1), body.Data[0].RequestsCount)
	assert.Equal(t, int64(1700000000), body.Data[0].LastRequestTimestamp)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/usage", `{"names":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/usage", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearAllData(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/snapshots", `{"id":"gone"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/admin/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/snapshots/gone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)

	doRequest(t, s, http.MethodGet, "/api/v1/cardinality/metrics", "")

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "cardinality_explorer_http_requests_total")
	assert.Contains(t, body, `route="/api/v1/cardinality/{kind}"`)
	assert.Contains(t, body, "cardinality_explorer_table_queries_total")
}

func TestPaginateSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, resp := paginateSlice(items, PaginationParams{Limit: 2, Offset: 2})
	assert.Equal(t, []int{3, 4}, page)
	assert.True(t, resp.HasMore)

	page, resp = paginateSlice(items, PaginationParams{Limit: 10, Offset: 4})
	assert.Equal(t, []int{5}, page)
	assert.False(t, resp.HasMore)

	page, _ = paginateSlice(items, PaginationParams{Limit: 10, Offset: 9})
	assert.Empty(t, page)
}

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 100, 0},
		{"limit=10&offset=5", 10, 5},
		{"limit=5000", 1000, 0},
		{"limit=-1&offset=-3", 100, 0},
		{"limit=abc", 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, bytes.NewReader(nil))
			params := parsePaginationParams(req)
			assert.Equal(t, tt.limit, params.Limit)
			assert.Equal(t, tt.offset, params.Offset)
		})
	}
}
