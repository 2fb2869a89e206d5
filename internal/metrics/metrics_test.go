package metrics

import (
	"sync"
	"testing"
	"time"

	"cli2api/internal/core"
)

type countingStorage struct {
	mu        sync.Mutex
	saveCount int
}

func (s *countingStorage) SaveStats(_ *core.RequestStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCount++
	return nil
}

func (s *countingStorage) LoadStats() (*core.RequestStats, error) {
	return &core.RequestStats{}, nil
}

func (s *countingStorage) Close() error { return nil }

func (s *countingStorage) getSaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCount
}

func newTestMetrics(storage core.StorageInterface, historySize int) *MetricsService {
	return NewMetricsService(MetricsConfig{
		SaveInterval: time.Second,
		HistorySize:  historySize,
		Storage:      storage,
		Logger:       &core.NopLogger{},
	})
}

func TestNewMetricsService(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	if ms == nil {
		t.Fatal("MetricsService should not be nil")
	}
}

func TestMetricsService_RecordRequest(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	ms.RecordRequest(true, 100, "gpt-4o", "claude-code")
	ms.RecordRequest(false, 200, "gpt-4o", "claude-code")
	ms.RecordRequest(true, 150, "claude-sonnet-4", "claude-code")

	// Flush buffer
	time.Sleep(200 * time.Millisecond)

	stats := ms.GetRequestStats()
	if stats.TotalRequests != 3 {
		t.Errorf("Expected 3 total requests, got %d", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 2 {
		t.Errorf("Expected 2 successful requests, got %d", stats.SuccessfulRequests)
	}
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestMetricsService_RecordsProviderName(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	ms.RecordRequest(true, 100, "gpt-4o", "claude-code")
	time.Sleep(200 * time.Millisecond)

	stats := ms.GetRequestStats()
	if len(stats.RequestHistory) != 1 {
		t.Fatalf("期望1条历史记录，实际 %d", len(stats.RequestHistory))
	}
	if stats.RequestHistory[0].Provider != "claude-code" {
		t.Errorf("Provider = %q", stats.RequestHistory[0].Provider)
	}
}

func TestMetricsService_ErrorCounters(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	ms.RecordTimeout()
	ms.RecordTimeout()
	ms.RecordSpawnFailure()

	timeouts, spawnFailures := ms.GetErrorCounters()
	if timeouts != 2 {
		t.Errorf("超时计数 = %d，期望2", timeouts)
	}
	if spawnFailures != 1 {
		t.Errorf("启动失败计数 = %d，期望1", spawnFailures)
	}
}

func TestMetricsService_CacheCounters(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	ms.RecordCacheHit()
	ms.RecordCacheMiss()
	ms.RecordCacheMiss()

	hits, misses := ms.GetCacheCounters()
	if hits != 1 || misses != 2 {
		t.Errorf("缓存计数 = (%d, %d)，期望 (1, 2)", hits, misses)
	}
}

func TestMetricsService_GetQPS(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	qps := ms.GetQPS()
	if qps < 0 {
		t.Errorf("QPS should not be negative, got %f", qps)
	}
}

func TestMetricsService_MaxHistorySize(t *testing.T) {
	ms := newTestMetrics(nil, 3)
	defer func() { _ = ms.Close() }()

	for i := 0; i < 5; i++ {
		ms.RecordRequest(true, 100, "model", "claude-code")
	}

	// Wait for flush
	time.Sleep(200 * time.Millisecond)

	stats := ms.GetRequestStats()
	if len(stats.RequestHistory) > 3 {
		t.Errorf("History should be capped at 3, got %d", len(stats.RequestHistory))
	}
}

func TestRecordSuccessWithMetrics(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	RecordSuccessWithMetrics(ms, time.Now(), "gpt-4o", "claude-code")

	time.Sleep(200 * time.Millisecond)

	stats := ms.GetRequestStats()
	if stats.SuccessfulRequests != 1 {
		t.Errorf("Expected 1 successful request, got %d", stats.SuccessfulRequests)
	}
}

func TestRecordFailureWithMetrics(t *testing.T) {
	ms := newTestMetrics(nil, 10)
	defer func() { _ = ms.Close() }()

	RecordFailureWithMetrics(ms, time.Now(), "gpt-4o", "claude-code")

	time.Sleep(200 * time.Millisecond)

	stats := ms.GetRequestStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestMetricsService_Close_Idempotent(t *testing.T) {
	st := &countingStorage{}
	ms := newTestMetrics(st, 10)

	ms.RecordRequest(true, 10, "gpt-4o", "claude-code")

	if err := ms.Close(); err != nil {
		t.Fatalf("第一次关闭不应失败: %v", err)
	}
	firstCloseSaves := st.getSaveCount()
	if firstCloseSaves == 0 {
		t.Fatal("第一次关闭后应至少有一次持久化")
	}

	if err := ms.Close(); err != nil {
		t.Fatalf("第二次关闭不应失败: %v", err)
	}

	if st.getSaveCount() != firstCloseSaves {
		t.Fatalf("第二次 Close 不应新增持久化，第一次=%d，第二次后=%d", firstCloseSaves, st.getSaveCount())
	}
}

func TestGetPeriodStats(t *testing.T) {
	now := time.Now()
	history := []core.RequestRecord{
		{Timestamp: now.Add(-30 * time.Minute), Success: true, ResponseTime: 100},
		{Timestamp: now.Add(-2 * time.Hour), Success: false, ResponseTime: 200},
		{Timestamp: now.Add(-30 * time.Hour), Success: true, ResponseTime: 300},
	}

	result := GetPeriodStats(history, 1, 24)
	oneHour := result[1]
	if oneHour.Requests != 1 {
		t.Errorf("1小时窗口请求数 = %d，期望1", oneHour.Requests)
	}
	if oneHour.SuccessRate != 100 {
		t.Errorf("1小时窗口成功率 = %f", oneHour.SuccessRate)
	}
	day := result[24]
	if day.Requests != 2 {
		t.Errorf("24小时窗口请求数 = %d，期望2", day.Requests)
	}
	if day.SuccessRate != 50 {
		t.Errorf("24小时窗口成功率 = %f", day.SuccessRate)
	}
}
