package domain

// StatusReason — причина перехода из закрытого словаря.
//
// Каждый переход несёт причину из фиксированного набора (никогда
// не свободный текст): значения парсятся аналитикой и совпадают
// с CHECK constraint в БД.
type StatusReason string

const (
	// --- постановка в очередь / retry ---

	ReasonInitialQueue   StatusReason = "initial_queue"
	ReasonManualRetry    StatusReason = "manual_retry"
	ReasonScheduledRetry StatusReason = "scheduled_retry"
	ReasonAutomaticRetry StatusReason = "automatic_retry"
	ReasonResumed        StatusReason = "resumed"
	ReasonWorkerStarted  StatusReason = "worker_started"

	// --- паузы и отсрочки ---

	ReasonPausedByUser        StatusReason = "paused_by_user"
	ReasonPausedQuotaExceeded StatusReason = "paused_quota_exceeded"
	ReasonDeferredRateLimited StatusReason = "deferred_rate_limited"
	ReasonDeferredMaintenance StatusReason = "deferred_maintenance"

	// --- требуется действие человека ---

	ReasonVerificationRequired StatusReason = "verification_required"
	ReasonCaptchaRequired      StatusReason = "captcha_required"
	ReasonEmailVerification    StatusReason = "email_verification_required"
	ReasonPhoneVerification    StatusReason = "phone_verification_required"
	ReasonDocumentRequired     StatusReason = "document_required"
	ReasonPaymentRequired      StatusReason = "payment_required"
	ReasonLoginRequired        StatusReason = "login_required"
	ReasonTwoFactorRequired    StatusReason = "two_factor_required"
	ReasonClaimListingRequired StatusReason = "claim_listing_required"
	ReasonContentFixRequired   StatusReason = "content_fix_required"
	ReasonManualReviewRequired StatusReason = "manual_review_required"

	// --- прохождение по каталогу ---

	ReasonSubmittedOK         StatusReason = "submitted_ok"
	ReasonDirectoryReviewing  StatusReason = "directory_reviewing"
	ReasonApprovedByDirectory StatusReason = "approved_by_directory"
	ReasonChangesRequested    StatusReason = "changes_requested"
	ReasonListingVerifiedLive StatusReason = "listing_verified_live"
	ReasonAlreadyListedFound  StatusReason = "already_listed_found"

	// --- отказы ---

	ReasonRejectedByDirectory StatusReason = "rejected_by_directory"
	ReasonRejectedDuplicate   StatusReason = "rejected_duplicate"
	ReasonRejectedPolicy      StatusReason = "rejected_policy"

	// --- ограничения каталога и аккаунта ---

	ReasonDirectoryOffline     StatusReason = "directory_offline"
	ReasonDirectoryUnsupported StatusReason = "directory_unsupported"
	ReasonQuotaExhausted       StatusReason = "quota_exhausted"
	ReasonSubscriptionEnded    StatusReason = "subscription_cancelled"
	ReasonBlockedByDirectory   StatusReason = "blocked_by_directory"
	ReasonTargetDisabled       StatusReason = "target_disabled"

	// --- отмены и таймауты ---

	ReasonUserCancelled   StatusReason = "user_cancelled"
	ReasonAdminCancelled  StatusReason = "admin_cancelled"
	ReasonDeadlineExpired StatusReason = "deadline_expired"
	ReasonLeaseExpired    StatusReason = "lease_expired"

	// --- ошибки ---

	ReasonConnectorError  StatusReason = "connector_error"
	ReasonValidationError StatusReason = "validation_error"
	ReasonNetworkError    StatusReason = "network_error"
)

// allStatusReasons — полный словарь причин.
var allStatusReasons = []StatusReason{
	ReasonInitialQueue, ReasonManualRetry, ReasonScheduledRetry,
	ReasonAutomaticRetry, ReasonResumed, ReasonWorkerStarted,
	ReasonPausedByUser, ReasonPausedQuotaExceeded,
	ReasonDeferredRateLimited, ReasonDeferredMaintenance,
	ReasonVerificationRequired, ReasonCaptchaRequired,
	ReasonEmailVerification, ReasonPhoneVerification,
	ReasonDocumentRequired, ReasonPaymentRequired,
	ReasonLoginRequired, ReasonTwoFactorRequired,
	ReasonClaimListingRequired, ReasonContentFixRequired,
	ReasonManualReviewRequired,
	ReasonSubmittedOK, ReasonDirectoryReviewing, ReasonApprovedByDirectory,
	ReasonChangesRequested, ReasonListingVerifiedLive, ReasonAlreadyListedFound,
	ReasonRejectedByDirectory, ReasonRejectedDuplicate, ReasonRejectedPolicy,
	ReasonDirectoryOffline, ReasonDirectoryUnsupported,
	ReasonQuotaExhausted, ReasonSubscriptionEnded,
	ReasonBlockedByDirectory, ReasonTargetDisabled,
	ReasonUserCancelled, ReasonAdminCancelled,
	ReasonDeadlineExpired, ReasonLeaseExpired,
	ReasonConnectorError, ReasonValidationError, ReasonNetworkError,
}

var statusReasonSet = func() map[StatusReason]struct{} {
	set := make(map[StatusReason]struct{}, len(allStatusReasons))
	for _, r := range allStatusReasons {
		set[r] = struct{}{}
	}
	return set
}()

// Valid возвращает true, если причина входит в словарь.
func (r StatusReason) Valid() bool {
	_, ok := statusReasonSet[r]
	return ok
}

// AllStatusReasons возвращает все причины словаря.
func AllStatusReasons() []StatusReason {
	out := make([]StatusReason, len(allStatusReasons))
	copy(out, allStatusReasons)
	return out
}
