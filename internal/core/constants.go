package core

import "time"

// Invocation timeout constants
const (
	DefaultInvocationTimeout = 120 * time.Second
	VersionProbeTimeout      = 10 * time.Second
	AuthProbeTimeout         = 15 * time.Second
	HealthProbeTimeout       = 30 * time.Second
	ModelListTimeout         = 30 * time.Second
	TerminateGracePeriod     = 5 * time.Second
)

// Cache config constants
const (
	CacheDefaultCapacity = 1000
	CacheCleanupInterval = 5 * time.Minute
	ModelListCacheTTL    = 5 * time.Minute
	CacheKeyVersion      = "v1"
)

// Stats and monitoring constants
const (
	StatsFilePath        = "stats.json"
	MinSaveInterval      = 5 * time.Second
	HistoryBufferSize    = 1000
	HistoryBatchSize     = 100
	HistoryFlushInterval = 100 * time.Millisecond
)

// Output capture limits
const (
	MaxCapturedOutputSize = 10 * 1024 * 1024
	MaxScannerBufferSize  = 1024 * 1024
	FragmentChannelBuffer = 64
)

// Request body limit. Prompts are plain text, so the inbound cap
// mirrors the outbound capture bound.
const MaxRequestBodySize = 10 * 1024 * 1024

// Logging config constants
const (
	MaxDebugFilePathLength = 260
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)

// Time format constants
const (
	TimeFormatDateTime = "2006-01-02 15:04:05"
)
