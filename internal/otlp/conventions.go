package otlp

// Attribute keys following the OpenTelemetry generative-AI semantic
// conventions, plus the vendor keys emitted by the Lumina SDKs.
const (
	AttrGenAISystem             = "gen_ai.system"
	AttrGenAIRequestModel       = "gen_ai.request.model"
	AttrGenAIResponseModel      = "gen_ai.response.model"
	AttrGenAIResponseID         = "gen_ai.response.id"
	AttrGenAIResponseFinish     = "gen_ai.response.finish_reason"
	AttrGenAIUsagePromptTokens  = "gen_ai.usage.prompt_tokens"
	AttrGenAIUsageOutputTokens  = "gen_ai.usage.completion_tokens"
	AttrGenAIUsageTotalTokens   = "gen_ai.usage.total_tokens"
	AttrGenAIPrompt             = "gen_ai.prompt"
	AttrGenAICompletion         = "gen_ai.completion"

	AttrLuminaCustomerID   = "lumina.customer_id"
	AttrLuminaEnvironment  = "lumina.environment"
	AttrLuminaServiceName  = "lumina.service_name"
	AttrLuminaEndpoint     = "lumina.endpoint"
	AttrLuminaCostUSD      = "lumina.cost_usd"
	AttrLuminaResponseHash = "lumina.response_hash"
	AttrLuminaTags         = "lumina.tags"

	AttrServiceName = "service.name"
)

// OTLP span status codes
const (
	StatusCodeUnset = 0
	StatusCodeOK    = 1
	StatusCodeError = 2
)
