package otlp

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/use-lumina/lumina/internal/pkg/errors"
)

// exportRequest mirrors the OTLP/JSON ExportTraceServiceRequest shape.
// ResourceSpans stays raw so a present-but-wrong-type value can be told
// apart from an absent one.
type exportRequest struct {
	ResourceSpans json.RawMessage `json:"resourceSpans"`
}

type resourceSpans struct {
	Resource   resource     `json:"resource"`
	ScopeSpans []scopeSpans `json:"scopeSpans"`
}

type resource struct {
	Attributes []keyValue `json:"attributes"`
}

type scopeSpans struct {
	Spans []wireSpan `json:"spans"`
}

type wireSpan struct {
	TraceID           string     `json:"traceId"`
	SpanID            string     `json:"spanId"`
	ParentSpanID      string     `json:"parentSpanId"`
	Name              string     `json:"name"`
	StartTimeUnixNano flexUint64 `json:"startTimeUnixNano"`
	EndTimeUnixNano   flexUint64 `json:"endTimeUnixNano"`
	Attributes        []keyValue `json:"attributes"`
	Status            spanStatus `json:"status"`
}

type spanStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type keyValue struct {
	Key   string   `json:"key"`
	Value anyValue `json:"value"`
}

type anyValue struct {
	StringValue *string    `json:"stringValue"`
	IntValue    *flexInt64 `json:"intValue"`
	DoubleValue *float64   `json:"doubleValue"`
	BoolValue   *bool      `json:"boolValue"`
	// BytesValue carries base64 per protojson.
	BytesValue *string `json:"bytesValue"`
	ArrayValue *struct {
		Values []anyValue `json:"values"`
	} `json:"arrayValue"`
	KvlistValue *struct {
		Values []keyValue `json:"values"`
	} `json:"kvlistValue"`
}

// flexInt64 accepts both protojson string encoding and plain JSON numbers,
// since SDKs in the wild emit either.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' {
		data = data[1 : len(data)-1]
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' {
		data = data[1 : len(data)-1]
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return err
	}
	*f = flexUint64(n)
	return nil
}

// AttributeMap holds a span's attributes after merging resource-level and
// span-level entries.
type AttributeMap map[string]anyValue

// SetString stores a string attribute
func (m AttributeMap) SetString(key, value string) {
	m[key] = anyValue{StringValue: &value}
}

// SetInt stores an integer attribute
func (m AttributeMap) SetInt(key string, value int64) {
	v := flexInt64(value)
	m[key] = anyValue{IntValue: &v}
}

// SetFloat stores a double attribute
func (m AttributeMap) SetFloat(key string, value float64) {
	m[key] = anyValue{DoubleValue: &value}
}

// SetStrings stores a string array attribute
func (m AttributeMap) SetStrings(key string, values []string) {
	arr := &struct {
		Values []anyValue `json:"values"`
	}{Values: make([]anyValue, 0, len(values))}
	for i := range values {
		arr.Values = append(arr.Values, anyValue{StringValue: &values[i]})
	}
	m[key] = anyValue{ArrayValue: arr}
}

// GetString returns the string value for key, or "" when absent or not a string.
func (m AttributeMap) GetString(key string) string {
	v, ok := m[key]
	if !ok || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

// GetFloat returns a numeric value for key, accepting both double and int
// encodings.
func (m AttributeMap) GetFloat(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	if v.DoubleValue != nil {
		return *v.DoubleValue, true
	}
	if v.IntValue != nil {
		return float64(*v.IntValue), true
	}
	if v.StringValue != nil {
		if f, err := strconv.ParseFloat(*v.StringValue, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// GetInt returns an integer value for key, accepting int, double, and
// string encodings.
func (m AttributeMap) GetInt(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	if v.IntValue != nil {
		return int64(*v.IntValue), true
	}
	if v.DoubleValue != nil {
		return int64(*v.DoubleValue), true
	}
	if v.StringValue != nil {
		if n, err := strconv.ParseInt(*v.StringValue, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// GetBytes returns the decoded bytes value for key, or nil when absent,
// not a bytes value, or not valid base64.
func (m AttributeMap) GetBytes(key string) []byte {
	v, ok := m[key]
	if !ok || v.BytesValue == nil {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(*v.BytesValue)
	if err != nil {
		return nil
	}
	return b
}

// GetStringSlice returns the string elements of an array value for key.
// A plain string value is returned as a single-element slice.
func (m AttributeMap) GetStringSlice(key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if v.ArrayValue != nil {
		out := make([]string, 0, len(v.ArrayValue.Values))
		for _, el := range v.ArrayValue.Values {
			if el.StringValue != nil {
				out = append(out, *el.StringValue)
			}
		}
		return out
	}
	if v.StringValue != nil && *v.StringValue != "" {
		return []string{*v.StringValue}
	}
	return nil
}

// Span is a flattened OTLP span with resource and span attributes merged.
// Span-level attributes win on key collisions.
type Span struct {
	TraceID           string
	SpanID            string
	ParentSpanID      string
	Name              string
	StartTimeUnixNano uint64
	EndTimeUnixNano   uint64
	StatusCode        int
	StatusMessage     string
	Attributes        AttributeMap
}

// mergeAttributes writes key-value entries into dst. Nested kvlist values
// are flattened into dotted keys so lookups stay flat map reads.
func mergeAttributes(dst AttributeMap, prefix string, kvs []keyValue) {
	for _, kv := range kvs {
		key := kv.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if kv.Value.KvlistValue != nil {
			mergeAttributes(dst, key, kv.Value.KvlistValue.Values)
			continue
		}
		dst[key] = kv.Value
	}
}

// Parse decodes an OTLP/JSON export payload into flat spans. A payload
// whose resourceSpans field is missing or not an array is malformed. A
// well-formed payload with no spans yields an empty slice.
func Parse(payload []byte) ([]Span, error) {
	var req exportRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errors.MalformedPayload("invalid JSON body").WithError(err)
	}
	if req.ResourceSpans == nil {
		return nil, errors.MalformedPayload("resourceSpans field is required")
	}

	var rspans []resourceSpans
	if err := json.Unmarshal(req.ResourceSpans, &rspans); err != nil {
		return nil, errors.MalformedPayload("resourceSpans must be an array").WithError(err)
	}

	var spans []Span
	for _, rs := range rspans {
		resourceAttrs := make(AttributeMap, len(rs.Resource.Attributes))
		mergeAttributes(resourceAttrs, "", rs.Resource.Attributes)
		for _, ss := range rs.ScopeSpans {
			for _, ws := range ss.Spans {
				merged := make(AttributeMap, len(resourceAttrs)+len(ws.Attributes))
				for k, v := range resourceAttrs {
					merged[k] = v
				}
				mergeAttributes(merged, "", ws.Attributes)
				spans = append(spans, Span{
					TraceID:           ws.TraceID,
					SpanID:            ws.SpanID,
					ParentSpanID:      ws.ParentSpanID,
					Name:              ws.Name,
					StartTimeUnixNano: uint64(ws.StartTimeUnixNano),
					EndTimeUnixNano:   uint64(ws.EndTimeUnixNano),
					StatusCode:        ws.Status.Code,
					StatusMessage:     ws.Status.Message,
					Attributes:        merged,
				})
			}
		}
	}
	return spans, nil
}
