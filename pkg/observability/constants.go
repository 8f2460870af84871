package observability

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrRequestID      = "chat.request_id"
	AttrLanguage       = "chat.language"
	AttrStage          = "pipeline.stage"
	AttrDependency     = "dep"
	AttrOperation      = "op"
	AttrModel          = "llm.model"
	AttrErrorType      = "error.type"
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"

	SpanHTTPRequest   = "http.request"
	SpanPipelineRun   = "pipeline.run"
	SpanStageClassify = "pipeline.classify"
	SpanStageRetrieve = "pipeline.retrieve"
	SpanStageRerank   = "pipeline.rerank"
	SpanStageGenerate = "pipeline.generate"
	SpanStageGuard    = "pipeline.guard"
	SpanStageCache    = "pipeline.cache"

	DefaultServiceName = "climatechat"
)
