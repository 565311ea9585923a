package errors

// Error code constants. Codes are machine-readable identifiers; human
// messages live separately so the admin API can localize if it ever needs
// to. Backend logs always use English messages.

// Source/ingest codes.
const (
	CodeSourceNotFound      = "SOURCE_NOT_FOUND"
	CodeSourcePaused        = "SOURCE_PAUSED"
	CodeSourceFetchFailed   = "SOURCE_FETCH_FAILED"
	CodeSourceParseFailed   = "SOURCE_PARSE_FAILED"
	CodeSourceRateLimited   = "SOURCE_RATE_LIMITED"
	CodeSourceNotModified   = "SOURCE_NOT_MODIFIED"
)

// Article codes.
const (
	CodeArticleNotFound     = "ARTICLE_NOT_FOUND"
	CodeArticleDuplicate    = "ARTICLE_DUPLICATE"
	CodeArticleContentFetch = "ARTICLE_CONTENT_FETCH_FAILED"
)

// CVE sync codes.
const (
	CodeCVENotFound       = "CVE_NOT_FOUND"
	CodeCVESyncFailed     = "CVE_SYNC_FAILED"
	CodeCVESyncRateLimited = "CVE_SYNC_RATE_LIMITED"
)

// Event codes.
const (
	CodeEventNotFound          = "EVENT_NOT_FOUND"
	CodeEventInvalidTransition = "EVENT_INVALID_TRANSITION"
	CodeEventRebuildFailed     = "EVENT_REBUILD_FAILED"
	CodeEventPurgeFailed       = "EVENT_PURGE_FAILED"
)

// LLM codes.
const (
	CodeLLMProviderNotConfigured = "LLM_PROVIDER_NOT_CONFIGURED"
	CodeLLMRequestFailed         = "LLM_REQUEST_FAILED"
	CodeLLMRateLimited           = "LLM_RATE_LIMITED"
)

// Publish codes.
const (
	CodePublishWriteFailed  = "PUBLISH_WRITE_FAILED"
	CodeBuildSiteFailed     = "BUILD_SITE_FAILED"
)

// Admin/auth codes.
const (
	CodeAuthFailed          = "AUTH_FAILED"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
	CodeJobNotFound         = "JOB_NOT_FOUND"
)
