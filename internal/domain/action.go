package domain

import "time"

// ActionNeededType — тип действия, которое должен выполнить человек,
// чтобы run мог продолжиться.
type ActionNeededType string

const (
	ActionCaptcha           ActionNeededType = "captcha"
	ActionEmailVerification ActionNeededType = "email_verification"
	ActionPhoneVerification ActionNeededType = "phone_verification"
	ActionSMSVerification   ActionNeededType = "sms_verification"
	ActionDocumentUpload    ActionNeededType = "document_upload"
	ActionPayment           ActionNeededType = "payment"
	ActionAccountLogin      ActionNeededType = "account_login"
	ActionTwoFactor         ActionNeededType = "two_factor"
	ActionClaimListing      ActionNeededType = "claim_listing"
	ActionContentFix        ActionNeededType = "content_fix"
	ActionManualReview      ActionNeededType = "manual_review"
	ActionOther             ActionNeededType = "other"
)

// actionReasons — маппинг тип действия → причина статуса.
//
// Каждый тип сохраняет свою узкую причину; generic
// verification_required используется только для "other".
var actionReasons = map[ActionNeededType]StatusReason{
	ActionCaptcha:           ReasonCaptchaRequired,
	ActionEmailVerification: ReasonEmailVerification,
	ActionPhoneVerification: ReasonPhoneVerification,
	ActionSMSVerification:   ReasonPhoneVerification,
	ActionDocumentUpload:    ReasonDocumentRequired,
	ActionPayment:           ReasonPaymentRequired,
	ActionAccountLogin:      ReasonLoginRequired,
	ActionTwoFactor:         ReasonTwoFactorRequired,
	ActionClaimListing:      ReasonClaimListingRequired,
	ActionContentFix:        ReasonContentFixRequired,
	ActionManualReview:      ReasonManualReviewRequired,
	ActionOther:             ReasonVerificationRequired,
}

// Valid возвращает true, если тип действия входит в таксономию.
func (a ActionNeededType) Valid() bool {
	_, ok := actionReasons[a]
	return ok
}

// Reason возвращает причину статуса для типа действия.
// Для неизвестного типа возвращает generic verification_required.
func (a ActionNeededType) Reason() StatusReason {
	if reason, ok := actionReasons[a]; ok {
		return reason
	}
	return ReasonVerificationRequired
}

// AllActionNeededTypes возвращает все типы действий.
func AllActionNeededTypes() []ActionNeededType {
	return []ActionNeededType{
		ActionCaptcha, ActionEmailVerification, ActionPhoneVerification,
		ActionSMSVerification, ActionDocumentUpload, ActionPayment,
		ActionAccountLogin, ActionTwoFactor, ActionClaimListing,
		ActionContentFix, ActionManualReview, ActionOther,
	}
}

// ActionNeededInfo — метаданные статуса action_needed.
type ActionNeededInfo struct {
	// Type — тип требуемого действия.
	Type ActionNeededType `json:"type"`

	// URL — где выполнить действие (страница каталога, форма).
	URL string `json:"url,omitempty"`

	// RequiredFields — какие поля нужно заполнить/подтвердить.
	RequiredFields []string `json:"required_fields,omitempty"`

	// Deadline — до какого момента действие должно быть выполнено.
	// После deadline sweeper переводит run в expired.
	Deadline *time.Time `json:"deadline,omitempty"`
}
