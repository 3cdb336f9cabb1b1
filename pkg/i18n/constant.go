package i18n

var ALLOW_LANG = map[string]bool{
	"en":    true,
	"zh-CN": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL          = "error.internal"
	ERROR_NOT_FOUND         = "error.notfound"
	ERROR_INVALIDARGUMENT   = "error.invalidargument"
	ERROR_FORBIDDEN         = "error.forbidden"
	ERROR_UNAUTHORIZED      = "error.unauthorized"
	ERROR_EXIST             = "error.exist"
	ERROR_TOO_MANY_REQUESTS = "error.tooManyRequests"

	ERROR_DOCUMENT_EMPTY_CONTENT  = "error.document.empty_content"
	ERROR_DOCUMENT_ALREADY_EXIST  = "error.document.already_exist"
	ERROR_DOCUMENT_NOT_READY      = "error.document.not_ready"
	ERROR_INGESTION_IN_PROGRESS   = "error.ingestion.in_progress"
	ERROR_RUN_NOT_FOUND           = "error.run.notfound"
	ERROR_AI_PROVIDER_UNAVAILABLE = "error.ai.provider.unavailable"
	ERROR_EMBEDDING_FAILED        = "error.ai.embedding.failed"
	ERROR_GENERATION_FAILED       = "error.ai.generation.failed"
	ERROR_UNSUPPORTED_CARD_TYPE   = "error.flashcard.unsupported_type"
)
