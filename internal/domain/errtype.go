package domain

// ErrorType — классификация ошибки отправки из закрытого словаря.
type ErrorType string

const (
	ErrTypeNetwork          ErrorType = "network"
	ErrTypeTimeout          ErrorType = "timeout"
	ErrTypeDNS              ErrorType = "dns"
	ErrTypeTLS              ErrorType = "tls"
	ErrTypeHTTPClient       ErrorType = "http_client"
	ErrTypeHTTPServer       ErrorType = "http_server"
	ErrTypeRateLimited      ErrorType = "rate_limited"
	ErrTypeCaptchaBlocked   ErrorType = "captcha_blocked"
	ErrTypeAuthFailed       ErrorType = "auth_failed"
	ErrTypeSessionExpired   ErrorType = "session_expired"
	ErrTypeValidation       ErrorType = "validation"
	ErrTypeParsing          ErrorType = "parsing"
	ErrTypeSelectorNotFound ErrorType = "selector_not_found"
	ErrTypeDirectoryChanged ErrorType = "directory_changed"
	ErrTypeDirectoryOffline ErrorType = "directory_offline"
	ErrTypeDuplicateListing ErrorType = "duplicate_listing"
	ErrTypeQuotaExceeded    ErrorType = "quota_exceeded"
	ErrTypeConnectorBug     ErrorType = "connector_bug"
)

// errorTypeReasons — маппинг тип ошибки → причина статуса.
//
// Маппинг тотальный: типы без явной записи отображаются
// в connector_error. Это осознанный fallback, а не пробел —
// аналитике важна стабильная причина для любого типа.
var errorTypeReasons = map[ErrorType]StatusReason{
	ErrTypeNetwork:          ReasonNetworkError,
	ErrTypeTimeout:          ReasonNetworkError,
	ErrTypeDNS:              ReasonNetworkError,
	ErrTypeTLS:              ReasonNetworkError,
	ErrTypeRateLimited:      ReasonDeferredRateLimited,
	ErrTypeCaptchaBlocked:   ReasonCaptchaRequired,
	ErrTypeValidation:       ReasonValidationError,
	ErrTypeDirectoryOffline: ReasonDirectoryOffline,
	ErrTypeDuplicateListing: ReasonAlreadyListedFound,
	ErrTypeQuotaExceeded:    ReasonQuotaExhausted,
}

var errorTypeSet = func() map[ErrorType]struct{} {
	set := make(map[ErrorType]struct{}, len(AllErrorTypes()))
	for _, t := range AllErrorTypes() {
		set[t] = struct{}{}
	}
	return set
}()

// Valid возвращает true, если тип ошибки входит в таксономию.
func (t ErrorType) Valid() bool {
	_, ok := errorTypeSet[t]
	return ok
}

// Reason возвращает причину статуса для типа ошибки.
// Для типов без явного маппинга — connector_error (см. errorTypeReasons).
func (t ErrorType) Reason() StatusReason {
	if reason, ok := errorTypeReasons[t]; ok {
		return reason
	}
	return ReasonConnectorError
}

// Retryable возвращает true, если ошибка по своей природе временная
// и имеет смысл планировать retry.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeDNS, ErrTypeTLS,
		ErrTypeHTTPServer, ErrTypeRateLimited, ErrTypeDirectoryOffline,
		ErrTypeSessionExpired:
		return true
	default:
		return false
	}
}

// AllErrorTypes возвращает все типы ошибок.
func AllErrorTypes() []ErrorType {
	return []ErrorType{
		ErrTypeNetwork, ErrTypeTimeout, ErrTypeDNS, ErrTypeTLS,
		ErrTypeHTTPClient, ErrTypeHTTPServer, ErrTypeRateLimited,
		ErrTypeCaptchaBlocked, ErrTypeAuthFailed, ErrTypeSessionExpired,
		ErrTypeValidation, ErrTypeParsing, ErrTypeSelectorNotFound,
		ErrTypeDirectoryChanged, ErrTypeDirectoryOffline,
		ErrTypeDuplicateListing, ErrTypeQuotaExceeded, ErrTypeConnectorBug,
	}
}

// LastErrorInfo — метаданные последней ошибки run.
type LastErrorInfo struct {
	// Type — тип ошибки из таксономии.
	Type ErrorType `json:"type"`

	// Code — машинный код ошибки коннектора (HTTP-статус, код каталога).
	Code string `json:"code,omitempty"`

	// Message — человекочитаемое описание.
	Message string `json:"message,omitempty"`
}
