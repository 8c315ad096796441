package service

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/otlp"
)

// wellKnownAttrs are attribute keys mapped to first-class trace fields.
// Anything else lands in the trace metadata.
var wellKnownAttrs = map[string]struct{}{
	otlp.AttrServiceName:            {},
	otlp.AttrGenAISystem:            {},
	otlp.AttrGenAIRequestModel:      {},
	otlp.AttrGenAIResponseModel:     {},
	otlp.AttrGenAIUsagePromptTokens: {},
	otlp.AttrGenAIUsageOutputTokens: {},
	otlp.AttrGenAIUsageTotalTokens:  {},
	otlp.AttrGenAIPrompt:            {},
	otlp.AttrGenAICompletion:        {},
	otlp.AttrLuminaCustomerID:       {},
	otlp.AttrLuminaEnvironment:      {},
	otlp.AttrLuminaServiceName:      {},
	otlp.AttrLuminaEndpoint:         {},
	otlp.AttrLuminaCostUSD:          {},
	otlp.AttrLuminaResponseHash:     {},
	otlp.AttrLuminaTags:             {},
}

// TransformService converts flattened OTLP spans into canonical traces
type TransformService struct {
	now func() time.Time
}

// NewTransformService creates a new transform service
func NewTransformService() *TransformService {
	return &TransformService{now: time.Now}
}

// Transform maps one flat span onto the canonical trace model. Vendor keys
// take precedence over the generic OpenTelemetry ones, and cost is taken
// as reported by the SDK rather than recomputed.
func (s *TransformService) Transform(span otlp.Span) domain.Trace {
	attrs := span.Attributes

	trace := domain.Trace{
		TraceID:      span.TraceID,
		SpanID:       span.SpanID,
		ParentSpanID: span.ParentSpanID,
		CustomerID:   attrs.GetString(otlp.AttrLuminaCustomerID),
		Provider:     attrs.GetString(otlp.AttrGenAISystem),
		Prompt:       attrs.GetString(otlp.AttrGenAIPrompt),
		Response:     attrs.GetString(otlp.AttrGenAICompletion),
		Tags:         attrs.GetStringSlice(otlp.AttrLuminaTags),
	}

	trace.ServiceName = attrs.GetString(otlp.AttrLuminaServiceName)
	if trace.ServiceName == "" {
		trace.ServiceName = attrs.GetString(otlp.AttrServiceName)
	}

	trace.Endpoint = attrs.GetString(otlp.AttrLuminaEndpoint)
	if trace.Endpoint == "" {
		trace.Endpoint = span.Name
	}

	env := attrs.GetString(otlp.AttrLuminaEnvironment)
	if env == "" {
		env = string(domain.EnvironmentLive)
	}
	trace.Environment = domain.Environment(env)

	trace.Model = attrs.GetString(otlp.AttrGenAIResponseModel)
	if trace.Model == "" {
		trace.Model = attrs.GetString(otlp.AttrGenAIRequestModel)
	}

	if span.StartTimeUnixNano > 0 {
		trace.Timestamp = time.Unix(0, int64(span.StartTimeUnixNano)).UTC()
	} else {
		trace.Timestamp = s.now().UTC()
	}
	if span.EndTimeUnixNano > span.StartTimeUnixNano && span.StartTimeUnixNano > 0 {
		trace.LatencyMs = int64(span.EndTimeUnixNano-span.StartTimeUnixNano) / int64(time.Millisecond)
	}

	trace.PromptTokens, _ = attrs.GetInt(otlp.AttrGenAIUsagePromptTokens)
	trace.CompletionTokens, _ = attrs.GetInt(otlp.AttrGenAIUsageOutputTokens)
	if total, ok := attrs.GetInt(otlp.AttrGenAIUsageTotalTokens); ok {
		trace.TotalTokens = total
	} else {
		trace.TotalTokens = trace.PromptTokens + trace.CompletionTokens
	}

	trace.CostUSD, _ = attrs.GetFloat(otlp.AttrLuminaCostUSD)

	if span.StatusCode == otlp.StatusCodeError {
		trace.Status = domain.TraceStatusError
		trace.ErrorMessage = span.StatusMessage
	} else {
		trace.Status = domain.TraceStatusSuccess
	}

	trace.ResponseHash = attrs.GetString(otlp.AttrLuminaResponseHash)
	if trace.ResponseHash == "" && trace.Response != "" {
		trace.ResponseHash = HashResponse(trace.Response)
	}

	metadata := make(map[string]string)
	for key := range attrs {
		if _, known := wellKnownAttrs[key]; known {
			continue
		}
		if v := attrs.GetString(key); v != "" {
			metadata[key] = v
		}
	}
	if len(metadata) > 0 {
		trace.Metadata = metadata
	}

	return trace
}

// TransformBatch maps a parsed payload onto canonical traces
func (s *TransformService) TransformBatch(spans []otlp.Span) []domain.Trace {
	traces := make([]domain.Trace, 0, len(spans))
	for _, span := range spans {
		traces = append(traces, s.Transform(span))
	}
	return traces
}

// HashResponse produces a short stable fingerprint of a response body for
// cheap similarity comparisons.
func HashResponse(response string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(response))
	return fmt.Sprintf("%016x", h.Sum64())
}
