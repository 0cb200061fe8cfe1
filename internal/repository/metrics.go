package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const metricsPrefix = "popcorn:metrics:"

// Metrics stores API and upstream fetch metrics in Redis.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	client *redis.Client
}

// APIStats represents statistics for an API endpoint
type APIStats struct {
	Path         string  `json:"path"`
	TotalCalls   int64   `json:"total_calls"`
	SuccessCalls int64   `json:"success_calls"`
	ErrorCalls   int64   `json:"error_calls"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// FetchStats counts settled upstream page requests by outcome
type FetchStats struct {
	Outcomes     map[string]int64 `json:"outcomes"`
	Total        int64            `json:"total"`
	AvgLatencyMs float64          `json:"avg_latency_ms"`
}

// DailyStats represents daily API statistics
type DailyStats struct {
	Date       string  `json:"date"`
	TotalCalls int64   `json:"total_calls"`
	AvgLatency float64 `json:"avg_latency"`
}

// OverallStats represents overall system statistics
type OverallStats struct {
	TotalAPICalls int64        `json:"total_api_calls"`
	TodayAPICalls int64        `json:"today_api_calls"`
	AvgLatencyMs  float64      `json:"avg_latency_ms"`
	ErrorRate     float64      `json:"error_rate"`
	TopEndpoints  []APIStats   `json:"top_endpoints"`
	DailyTrend    []DailyStats `json:"daily_trend"`
	Fetches       FetchStats   `json:"fetches"`
	Uptime        int64        `json:"uptime_seconds"`
}

// NewMetrics creates a Metrics instance on an existing client
func NewMetrics(client *redis.Client) *Metrics {
	return &Metrics{client: client}
}

// Enabled reports whether metrics are recorded
func (m *Metrics) Enabled() bool {
	return m != nil
}

// RecordAPICall records an API call
func (m *Metrics) RecordAPICall(ctx context.Context, path string, statusCode int, latencyMs float64) error {
	if m == nil {
		return nil
	}
	today := time.Now().Format("2006-01-02")

	pipe := m.client.Pipeline()

	pathKey := metricsPrefix + "path:" + path
	pipe.HIncrBy(ctx, pathKey, "total", 1)
	pipe.HIncrByFloat(ctx, pathKey, "latency_sum", latencyMs)
	if statusCode >= 200 && statusCode < 400 {
		pipe.HIncrBy(ctx, pathKey, "success", 1)
	} else {
		pipe.HIncrBy(ctx, pathKey, "error", 1)
	}

	dailyKey := metricsPrefix + "daily:" + today
	pipe.HIncrBy(ctx, dailyKey, "total", 1)
	pipe.HIncrByFloat(ctx, dailyKey, "latency_sum", latencyMs)
	pipe.Expire(ctx, dailyKey, 30*24*time.Hour) // Keep 30 days

	pipe.Incr(ctx, metricsPrefix+"global:total")
	pipe.IncrByFloat(ctx, metricsPrefix+"global:latency_sum", latencyMs)
	pipe.SAdd(ctx, metricsPrefix+"paths", path)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to record metrics")
		return err
	}
	return nil
}

// RecordFetch records the outcome of one upstream page request
func (m *Metrics) RecordFetch(ctx context.Context, outcome string, latencyMs float64) error {
	if m == nil {
		return nil
	}
	key := metricsPrefix + "fetch"
	pipe := m.client.Pipeline()
	pipe.HIncrBy(ctx, key, "outcome:"+outcome, 1)
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrByFloat(ctx, key, "latency_sum", latencyMs)
	_, err := pipe.Exec(ctx)
	return err
}

// GetAPIStats gets statistics for a specific API path
func (m *Metrics) GetAPIStats(ctx context.Context, path string) (*APIStats, error) {
	if m == nil {
		return &APIStats{Path: path}, nil
	}
	result, err := m.client.HGetAll(ctx, metricsPrefix+"path:"+path).Result()
	if err != nil {
		return nil, err
	}

	total, _ := strconv.ParseInt(result["total"], 10, 64)
	success, _ := strconv.ParseInt(result["success"], 10, 64)
	errors, _ := strconv.ParseInt(result["error"], 10, 64)
	latencySum, _ := strconv.ParseFloat(result["latency_sum"], 64)

	stats := &APIStats{
		Path:         path,
		TotalCalls:   total,
		SuccessCalls: success,
		ErrorCalls:   errors,
	}
	if total > 0 {
		stats.AvgLatencyMs = latencySum / float64(total)
	}
	return stats, nil
}

// GetFetchStats gets upstream fetch outcome counters
func (m *Metrics) GetFetchStats(ctx context.Context) (*FetchStats, error) {
	stats := &FetchStats{Outcomes: map[string]int64{}}
	if m == nil {
		return stats, nil
	}
	result, err := m.client.HGetAll(ctx, metricsPrefix+"fetch").Result()
	if err != nil {
		return nil, err
	}

	var latencySum float64
	for field, value := range result {
		switch {
		case field == "total":
			stats.Total, _ = strconv.ParseInt(value, 10, 64)
		case field == "latency_sum":
			latencySum, _ = strconv.ParseFloat(value, 64)
		case strings.HasPrefix(field, "outcome:"):
			n, _ := strconv.ParseInt(value, 10, 64)
			stats.Outcomes[strings.TrimPrefix(field, "outcome:")] = n
		}
	}
	if stats.Total > 0 {
		stats.AvgLatencyMs = latencySum / float64(stats.Total)
	}
	return stats, nil
}

// GetOverallStats gets overall system statistics
func (m *Metrics) GetOverallStats(ctx context.Context) (*OverallStats, error) {
	stats := &OverallStats{}
	if m == nil {
		return stats, nil
	}

	total, _ := m.client.Get(ctx, metricsPrefix+"global:total").Int64()
	latencySum, _ := m.client.Get(ctx, metricsPrefix+"global:latency_sum").Float64()
	stats.TotalAPICalls = total
	if total > 0 {
		stats.AvgLatencyMs = latencySum / float64(total)
	}

	today := time.Now().Format("2006-01-02")
	stats.TodayAPICalls, _ = m.client.HGet(ctx, metricsPrefix+"daily:"+today, "total").Int64()

	paths, _ := m.client.SMembers(ctx, metricsPrefix+"paths").Result()
	var allStats []APIStats
	var totalErrors int64
	for _, path := range paths {
		pathStats, err := m.GetAPIStats(ctx, path)
		if err == nil && pathStats.TotalCalls > 0 {
			allStats = append(allStats, *pathStats)
			totalErrors += pathStats.ErrorCalls
		}
	}

	// Sort by total calls and get top 10
	sort.Slice(allStats, func(i, j int) bool {
		return allStats[i].TotalCalls > allStats[j].TotalCalls
	})
	if len(allStats) > 10 {
		allStats = allStats[:10]
	}
	stats.TopEndpoints = allStats

	if total > 0 {
		stats.ErrorRate = float64(totalErrors) / float64(total) * 100
	}

	stats.DailyTrend = m.getDailyTrend(ctx, 7)

	if fetches, err := m.GetFetchStats(ctx); err == nil {
		stats.Fetches = *fetches
	}

	startTime, err := m.client.Get(ctx, metricsPrefix+"server:start_time").Int64()
	if err == nil && startTime > 0 {
		stats.Uptime = time.Now().Unix() - startTime
	}

	return stats, nil
}

// getDailyTrend gets daily statistics for the last N days
func (m *Metrics) getDailyTrend(ctx context.Context, days int) []DailyStats {
	var trend []DailyStats

	for i := days - 1; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i).Format("2006-01-02")
		result, err := m.client.HGetAll(ctx, metricsPrefix+"daily:"+date).Result()
		if err != nil {
			continue
		}

		total, _ := strconv.ParseInt(result["total"], 10, 64)
		latencySum, _ := strconv.ParseFloat(result["latency_sum"], 64)

		avgLatency := 0.0
		if total > 0 {
			avgLatency = latencySum / float64(total)
		}

		trend = append(trend, DailyStats{
			Date:       date,
			TotalCalls: total,
			AvgLatency: avgLatency,
		})
	}

	return trend
}

// RecordServerStart records server start time
func (m *Metrics) RecordServerStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.client.Set(ctx, metricsPrefix+"server:start_time", time.Now().Unix(), 0)
}

// ResetMetrics resets all metrics
func (m *Metrics) ResetMetrics(ctx context.Context) (int64, error) {
	if m == nil {
		return 0, nil
	}
	keys, err := m.client.Keys(ctx, metricsPrefix+"*").Result()
	if err != nil {
		return 0, fmt.Errorf("redis keys error: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return m.client.Del(ctx, keys...).Result()
}
