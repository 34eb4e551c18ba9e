// Package receiver implements OTLP HTTP and gRPC endpoints that feed metric
// data points into a cardinality collector.
package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/fidde/cardinality_explorer/internal/analyzer"
)

// maxBodyBytes bounds a decompressed export request.
const maxBodyBytes = 32 << 20

// HTTPReceiver handles OTLP HTTP requests.
type HTTPReceiver struct {
	observer        analyzer.Observer
	metricsAnalyzer *analyzer.MetricsAnalyzer
	server          *http.Server
	logger          *slog.Logger
}

// NewHTTPReceiver creates a new HTTP receiver feeding obs.
func NewHTTPReceiver(addr string, obs analyzer.Observer, logger *slog.Logger) *HTTPReceiver {
	if logger == nil {
		logger = slog.Default()
	}

	r := &HTTPReceiver{
		observer:        obs,
		metricsAnalyzer: analyzer.NewMetricsAnalyzer(),
		logger:          logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/metrics", r.handleMetrics)
	mux.HandleFunc("/health", r.handleHealth)

	r.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return r
}

// Handler returns the HTTP handler serving the OTLP routes.
func (r *HTTPReceiver) Handler() http.Handler {
	return r.server.Handler
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start() error {
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *HTTPReceiver) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// handleMetrics handles OTLP metrics export requests.
func (r *HTTPReceiver) handleMetrics(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer req.Body.Close()

	body, err := readBody(req)
	if err != nil {
		exportRequestsTotal.WithLabelValues("http", "bad_request").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var exportReq colmetricspb.ExportMetricsServiceRequest
	asJSON, err := decodeExportRequest(body, isJSON(req.Header.Get("Content-Type")), &exportReq)
	if err != nil {
		r.logger.Warn("failed to parse metrics request",
			"content_type", req.Header.Get("Content-Type"),
			"bytes", len(body),
			"error", err)
		exportRequestsTotal.WithLabelValues("http", "bad_request").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := r.metricsAnalyzer.AnalyzeInto(&exportReq, r.observer)
	if err != nil {
		r.logger.Error("metrics analysis failed", "error", err)
		exportRequestsTotal.WithLabelValues("http", "error").Inc()
		http.Error(w, fmt.Sprintf("Failed to analyze metrics: %v", err), http.StatusInternalServerError)
		return
	}

	exportRequestsTotal.WithLabelValues("http", "ok").Inc()
	r.logger.Debug("metrics export received", "data_points", points)

	// The response uses the encoding the request was sent in.
	r.writeResponse(w, &colmetricspb.ExportMetricsServiceResponse{}, asJSON)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// readBody reads the request body, inflating it when gzip encoded.
func readBody(req *http.Request) ([]byte, error) {
	reader := io.Reader(req.Body)
	if req.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

// decodeExportRequest tries the declared encoding first and falls back to
// the other one. It reports whether the body decoded as JSON.
func decodeExportRequest(body []byte, preferJSON bool, out *colmetricspb.ExportMetricsServiceRequest) (bool, error) {
	unmarshaler := protojson.UnmarshalOptions{DiscardUnknown: true}

	if preferJSON {
		jsonErr := unmarshaler.Unmarshal(body, out)
		if jsonErr == nil {
			return true, nil
		}
		out.Reset()
		if protoErr := proto.Unmarshal(body, out); protoErr != nil {
			return false, fmt.Errorf("failed to parse request: json error: %v, protobuf error: %v", jsonErr, protoErr)
		}
		return false, nil
	}

	protoErr := proto.Unmarshal(body, out)
	if protoErr == nil {
		return false, nil
	}
	out.Reset()
	if jsonErr := unmarshaler.Unmarshal(body, out); jsonErr != nil {
		return false, fmt.Errorf("failed to parse request: protobuf error: %v, json error: %v", protoErr, jsonErr)
	}
	return true, nil
}

// handleHealth handles health check requests.
func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeResponse writes resp as protobuf, or as JSON when asJSON is set.
func (r *HTTPReceiver) writeResponse(w http.ResponseWriter, resp proto.Message, asJSON bool) {
	contentType := "application/x-protobuf"
	marshal := proto.Marshal
	if asJSON {
		contentType = "application/json"
		marshal = protojson.Marshal
	}

	respBytes, err := marshal(resp)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(respBytes); err != nil {
		r.logger.Debug("failed to write export response", "error", err)
	}
}
