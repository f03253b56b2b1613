// Package benchmark - Batch classification over an image directory with a timing report.
package benchmark

import (
	"math"
	"runtime"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-freshness/images"
)

// ImageResult is the outcome for one image.
type ImageResult struct {
	Name             string             `json:"name"`
	Path             string             `json:"path"`
	Format           images.ImageFormat `json:"format,omitempty"`
	Width            int                `json:"width,omitempty"`
	Height           int                `json:"height,omitempty"`
	Label            string             `json:"label,omitempty"`
	Confidence       float64            `json:"confidence,omitempty"`
	DecodeDuration   time.Duration      `json:"decode_duration"`
	ClassifyDuration time.Duration      `json:"classify_duration"`
	Error            string             `json:"error,omitempty"`
}

// Failed reports whether the image could not be classified.
func (r ImageResult) Failed() bool {
	return r.Error != ""
}

// Summary aggregates a batch.
type Summary struct {
	Images           int            `json:"images"`
	Failures         int            `json:"failures"`
	ErrorRate        float64        `json:"error_rate"`
	LabelCounts      map[string]int `json:"label_counts"`
	LatencyMeanMs    float64        `json:"latency_mean_ms"`
	LatencyStdDevMs  float64        `json:"latency_stddev_ms"`
	LatencyP50Ms     float64        `json:"latency_p50_ms"`
	LatencyP95Ms     float64        `json:"latency_p95_ms"`
	ConfidenceMean   float64        `json:"confidence_mean"`
	ConfidenceStdDev float64        `json:"confidence_stddev"`
	FramesPerSecond  float64        `json:"frames_per_second"`
	MemoryStats      MemoryMetrics  `json:"memory_stats"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// memoryDelta builds MemoryMetrics from snapshots taken around a run.
func memoryDelta(start, end runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.Alloc,
		TotalAllocBytes: end.TotalAlloc - start.TotalAlloc,
		SysBytes:        end.Sys,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAlloc,
		HeapSysBytes:    end.HeapSys,
	}
}

// Summarize computes label counts and latency/confidence statistics over the successful
// results.
//
// Arguments:
//   - results: The per-image results.
//   - elapsed: Wall time of the whole batch.
//
// Returns:
//   - Summary: The aggregate. Memory stats are left for the caller.
func Summarize(results []ImageResult, elapsed time.Duration) Summary {
	summary := Summary{
		Images:      len(results),
		LabelCounts: make(map[string]int),
	}

	var latencies, confidences []float64
	for _, r := range results {
		if r.Failed() {
			summary.Failures++
			continue
		}
		summary.LabelCounts[r.Label]++
		latencies = append(latencies, float64(r.ClassifyDuration)/float64(time.Millisecond))
		confidences = append(confidences, r.Confidence)
	}

	if summary.Images > 0 {
		summary.ErrorRate = float64(summary.Failures) / float64(summary.Images)
	}
	if elapsed > 0 {
		summary.FramesPerSecond = float64(len(latencies)) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return summary
	}

	summary.LatencyMeanMs, summary.LatencyStdDevMs = meanStdDev(latencies)
	summary.ConfidenceMean, summary.ConfidenceStdDev = meanStdDev(confidences)

	sort.Float64s(latencies)
	summary.LatencyP50Ms = stat.Quantile(0.5, stat.Empirical, latencies, nil)
	summary.LatencyP95Ms = stat.Quantile(0.95, stat.Empirical, latencies, nil)

	return summary
}

// meanStdDev is stat.MeanStdDev with the single-sample deviation reported as 0.
func meanStdDev(x []float64) (float64, float64) {
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
