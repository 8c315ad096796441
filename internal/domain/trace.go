package domain

import (
	"time"
)

// Environment marks where a trace was produced
type Environment string

const (
	EnvironmentLive Environment = "live"
	EnvironmentTest Environment = "test"
)

// TraceStatus is the outcome of the recorded LLM call
type TraceStatus string

const (
	TraceStatusSuccess TraceStatus = "success"
	TraceStatusError   TraceStatus = "error"
)

// Trace represents a single recorded LLM call. One OTLP span maps to one
// Trace. Traces are immutable after ingestion except for the semantic score,
// which async scoring may append later.
type Trace struct {
	TraceID          string            `json:"traceId"`
	SpanID           string            `json:"spanId"`
	ParentSpanID     string            `json:"parentSpanId,omitempty"`
	CustomerID       string            `json:"customerId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	ServiceName      string            `json:"serviceName"`
	Endpoint         string            `json:"endpoint"`
	Environment      Environment       `json:"environment"`
	Provider         string            `json:"provider,omitempty"`
	Model            string            `json:"model,omitempty"`
	Prompt           string            `json:"prompt,omitempty"`
	Response         string            `json:"response,omitempty"`
	ResponseHash     string            `json:"responseHash,omitempty"`
	PromptTokens     int64             `json:"promptTokens"`
	CompletionTokens int64             `json:"completionTokens"`
	TotalTokens      int64             `json:"totalTokens"`
	LatencyMs        int64             `json:"latencyMs"`
	CostUSD          float64           `json:"costUsd"`
	Status           TraceStatus       `json:"status"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	SemanticScore    *float64          `json:"semanticScore,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// TraceFilter represents filter options for querying traces
type TraceFilter struct {
	CustomerID  *string
	ServiceName *string
	Endpoint    *string
	Environment *Environment
	Status      *TraceStatus
	Model       *string
	FromTime    *time.Time
	ToTime      *time.Time
}

// TraceList represents a paginated list of traces
type TraceList struct {
	Traces     []Trace `json:"traces"`
	TotalCount int64   `json:"totalCount"`
	HasMore    bool    `json:"hasMore"`
}

// TraceMetrics aggregates traces matching a filter for the dashboard
type TraceMetrics struct {
	TraceCount   int64   `json:"traceCount"`
	ErrorCount   int64   `json:"errorCount"`
	ErrorRate    float64 `json:"errorRate"`
	TotalCostUSD float64 `json:"totalCostUsd"`
	TotalTokens  int64   `json:"totalTokens"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// CostSample is one (cost, timestamp) observation used for baselines
type CostSample struct {
	CostUSD   float64   `json:"costUsd"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseSample is one historical successful response used for quality
// comparison
type ResponseSample struct {
	Response     string `json:"response"`
	ResponseHash string `json:"responseHash"`
}

// EndpointKey identifies one (service, endpoint) pair
type EndpointKey struct {
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}
