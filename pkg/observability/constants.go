package observability

// Span names and attribute keys used across the SDK.
const (
	SpanToolExecution = "toolkit.execute"
	SpanAPIRequest    = "platform.request"
	SpanCaseRun       = "pipeline.case"
	SpanSuiteRun      = "pipeline.suite"

	AttrToolName     = "tool.name"
	AttrToolSource   = "tool.source"
	AttrOperation    = "platform.operation"
	AttrStatusCode   = "http.status_code"
	AttrSuiteName    = "suite.name"
	AttrCaseName     = "case.name"
	AttrPipelineID   = "pipeline.id"
	AttrExecutionID  = "execution.id"
	AttrErrorType    = "error.type"
)
