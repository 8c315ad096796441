package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/otlp"
)

func testSpan() otlp.Span {
	attrs := otlp.AttributeMap{}
	attrs.SetString(otlp.AttrServiceName, "checkout-api")
	attrs.SetString(otlp.AttrGenAISystem, "openai")
	attrs.SetString(otlp.AttrGenAIRequestModel, "gpt-4o")
	attrs.SetString(otlp.AttrGenAIPrompt, "summarize this order")
	attrs.SetString(otlp.AttrGenAICompletion, "the order contains three items")
	attrs.SetInt(otlp.AttrGenAIUsagePromptTokens, 120)
	attrs.SetInt(otlp.AttrGenAIUsageOutputTokens, 40)
	attrs.SetInt(otlp.AttrGenAIUsageTotalTokens, 160)
	attrs.SetFloat(otlp.AttrLuminaCostUSD, 0.0042)
	attrs.SetString(otlp.AttrLuminaCustomerID, "cust-1")

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return otlp.Span{
		TraceID:           "trace-1",
		SpanID:            "span-1",
		Name:              "POST /v1/chat",
		StartTimeUnixNano: uint64(start.UnixNano()),
		EndTimeUnixNano:   uint64(start.Add(250 * time.Millisecond).UnixNano()),
		StatusCode:        otlp.StatusCodeOK,
		Attributes:        attrs,
	}
}

func TestTransformService_Transform(t *testing.T) {
	svc := NewTransformService()

	t.Run("maps well-known attributes onto trace fields", func(t *testing.T) {
		trace := svc.Transform(testSpan())

		assert.Equal(t, "trace-1", trace.TraceID)
		assert.Equal(t, "span-1", trace.SpanID)
		assert.Equal(t, "checkout-api", trace.ServiceName)
		assert.Equal(t, "POST /v1/chat", trace.Endpoint)
		assert.Equal(t, "openai", trace.Provider)
		assert.Equal(t, "gpt-4o", trace.Model)
		assert.Equal(t, "cust-1", trace.CustomerID)
		assert.Equal(t, int64(120), trace.PromptTokens)
		assert.Equal(t, int64(40), trace.CompletionTokens)
		assert.Equal(t, int64(160), trace.TotalTokens)
		assert.InDelta(t, 0.0042, trace.CostUSD, 1e-9)
		assert.Equal(t, int64(250), trace.LatencyMs)
		assert.Equal(t, domain.TraceStatusSuccess, trace.Status)
	})

	t.Run("vendor keys override generic ones", func(t *testing.T) {
		span := testSpan()
		span.Attributes.SetString(otlp.AttrLuminaServiceName, "checkout-override")
		span.Attributes.SetString(otlp.AttrLuminaEndpoint, "/v1/summarize")

		trace := svc.Transform(span)

		assert.Equal(t, "checkout-override", trace.ServiceName)
		assert.Equal(t, "/v1/summarize", trace.Endpoint)
	})

	t.Run("environment defaults to live", func(t *testing.T) {
		trace := svc.Transform(testSpan())
		assert.Equal(t, domain.EnvironmentLive, trace.Environment)

		span := testSpan()
		span.Attributes.SetString(otlp.AttrLuminaEnvironment, "test")
		trace = svc.Transform(span)
		assert.Equal(t, domain.EnvironmentTest, trace.Environment)
	})

	t.Run("response model wins over request model", func(t *testing.T) {
		span := testSpan()
		span.Attributes.SetString(otlp.AttrGenAIResponseModel, "gpt-4o-2024-08-06")

		trace := svc.Transform(span)

		assert.Equal(t, "gpt-4o-2024-08-06", trace.Model)
	})

	t.Run("total tokens falls back to prompt plus completion", func(t *testing.T) {
		attrs := otlp.AttributeMap{}
		attrs.SetInt(otlp.AttrGenAIUsagePromptTokens, 10)
		attrs.SetInt(otlp.AttrGenAIUsageOutputTokens, 5)
		span := otlp.Span{TraceID: "t", SpanID: "s", Attributes: attrs}

		trace := svc.Transform(span)

		assert.Equal(t, int64(15), trace.TotalTokens)
	})

	t.Run("error status carries the status message", func(t *testing.T) {
		span := testSpan()
		span.StatusCode = otlp.StatusCodeError
		span.StatusMessage = "upstream timeout"

		trace := svc.Transform(span)

		assert.Equal(t, domain.TraceStatusError, trace.Status)
		assert.Equal(t, "upstream timeout", trace.ErrorMessage)
	})

	t.Run("response hash falls back to a computed fingerprint", func(t *testing.T) {
		span := testSpan()
		trace := svc.Transform(span)
		assert.Equal(t, HashResponse("the order contains three items"), trace.ResponseHash)

		span.Attributes.SetString(otlp.AttrLuminaResponseHash, "precomputed")
		trace = svc.Transform(span)
		assert.Equal(t, "precomputed", trace.ResponseHash)
	})

	t.Run("unknown string attributes land in metadata", func(t *testing.T) {
		span := testSpan()
		span.Attributes.SetString("deployment.region", "eu-west-1")

		trace := svc.Transform(span)

		require.NotNil(t, trace.Metadata)
		assert.Equal(t, "eu-west-1", trace.Metadata["deployment.region"])
		assert.NotContains(t, trace.Metadata, otlp.AttrGenAIPrompt)
	})

	t.Run("missing start time defaults to now", func(t *testing.T) {
		fixed := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
		svc := &TransformService{now: func() time.Time { return fixed }}

		trace := svc.Transform(otlp.Span{TraceID: "t", SpanID: "s", Attributes: otlp.AttributeMap{}})

		assert.Equal(t, fixed, trace.Timestamp)
		assert.Zero(t, trace.LatencyMs)
	})
}

func TestHashResponse(t *testing.T) {
	a := HashResponse("hello world")
	b := HashResponse("hello world")
	c := HashResponse("hello there")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
