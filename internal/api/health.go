package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/fidde/cardinality_explorer/internal/collector"
)

// StatsProvider reports live collector bookkeeping.
type StatsProvider interface {
	Stats() collector.Stats
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Memory    *MemoryStats     `json:"memory,omitempty"`
	Collector *collector.Stats `json:"collector,omitempty"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	AllocMB      uint64 `json:"alloc_mb"`
	TotalAllocMB uint64 `json:"total_alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
}

// Version is reported by the health endpoint. Overridden at link time.
var Version = "dev"

var startTime = time.Now()

// HandleHealth returns the health status of the application
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime).String(),
		Memory: &MemoryStats{
			AllocMB:      m.Alloc / 1024 / 1024,
			TotalAllocMB: m.TotalAlloc / 1024 / 1024,
			SysMB:        m.Sys / 1024 / 1024,
			NumGC:        m.NumGC,
		},
	}
	if s.stats != nil {
		stats := s.stats.Stats()
		response.Collector = &stats
	}

	respondJSON(w, http.StatusOK, response)
}
