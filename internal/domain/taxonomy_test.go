package domain

import "testing"

// --- Reason dictionary ---

func TestStatusReasons_ValidAndUnique(t *testing.T) {
	seen := map[StatusReason]bool{}
	for _, r := range AllStatusReasons() {
		if seen[r] {
			t.Errorf("reason %q listed twice", r)
		}
		seen[r] = true
		if !r.Valid() {
			t.Errorf("reason %q should be valid", r)
		}
	}
	if StatusReason("because").Valid() {
		t.Error("unknown reason must be invalid")
	}
}

// --- Action needed mapping ---

func TestActionNeededTypes_MappingIsTotal(t *testing.T) {
	for _, a := range AllActionNeededTypes() {
		if !a.Valid() {
			t.Errorf("action type %q should be valid", a)
		}
		reason := a.Reason()
		if !reason.Valid() {
			t.Errorf("action %q maps to unknown reason %q", a, reason)
		}
	}
}

func TestActionNeededTypes_NarrowReasons(t *testing.T) {
	// Only "other" collapses to the generic verification_required
	for _, a := range AllActionNeededTypes() {
		got := a.Reason()
		if a == ActionOther {
			if got != ReasonVerificationRequired {
				t.Errorf("other should map to verification_required, got %q", got)
			}
			continue
		}
		if got == ReasonVerificationRequired {
			t.Errorf("action %q should keep its narrow reason, got generic %q", a, got)
		}
	}

	// sms and phone verification share a reason on purpose
	if ActionSMSVerification.Reason() != ActionPhoneVerification.Reason() {
		t.Error("sms and phone verification should share phone_verification_required")
	}
}

// --- Error type mapping ---

func TestErrorTypes_MappingIsTotalAndDeterministic(t *testing.T) {
	for _, e := range AllErrorTypes() {
		if !e.Valid() {
			t.Errorf("error type %q should be valid", e)
		}
		reason := e.Reason()
		if !reason.Valid() {
			t.Errorf("error type %q maps to unknown reason %q", e, reason)
		}
		// Determinism: same input, same output
		if e.Reason() != reason {
			t.Errorf("error type %q mapping is not stable", e)
		}
	}
}

func TestErrorTypes_DedicatedMappings(t *testing.T) {
	cases := []struct {
		errType ErrorType
		want    StatusReason
	}{
		{ErrTypeNetwork, ReasonNetworkError},
		{ErrTypeTimeout, ReasonNetworkError},
		{ErrTypeDNS, ReasonNetworkError},
		{ErrTypeTLS, ReasonNetworkError},
		{ErrTypeRateLimited, ReasonDeferredRateLimited},
		{ErrTypeCaptchaBlocked, ReasonCaptchaRequired},
		{ErrTypeValidation, ReasonValidationError},
		{ErrTypeDirectoryOffline, ReasonDirectoryOffline},
		{ErrTypeDuplicateListing, ReasonAlreadyListedFound},
		{ErrTypeQuotaExceeded, ReasonQuotaExhausted},
	}
	for _, c := range cases {
		if got := c.errType.Reason(); got != c.want {
			t.Errorf("%q.Reason() = %q, want %q", c.errType, got, c.want)
		}
	}
}

func TestErrorTypes_FallbackToConnectorError(t *testing.T) {
	// Types without a dedicated mapping collapse to connector_error
	for _, e := range []ErrorType{
		ErrTypeHTTPClient, ErrTypeHTTPServer, ErrTypeAuthFailed,
		ErrTypeSessionExpired, ErrTypeParsing, ErrTypeSelectorNotFound,
		ErrTypeDirectoryChanged, ErrTypeConnectorBug,
	} {
		if got := e.Reason(); got != ReasonConnectorError {
			t.Errorf("%q.Reason() = %q, want connector_error fallback", e, got)
		}
	}
}

func TestErrorTypes_Retryable(t *testing.T) {
	retryable := []ErrorType{
		ErrTypeNetwork, ErrTypeTimeout, ErrTypeDNS, ErrTypeTLS,
		ErrTypeHTTPServer, ErrTypeRateLimited, ErrTypeDirectoryOffline,
		ErrTypeSessionExpired,
	}
	for _, e := range retryable {
		if !e.Retryable() {
			t.Errorf("%q should be retryable", e)
		}
	}
	for _, e := range []ErrorType{ErrTypeValidation, ErrTypeDuplicateListing, ErrTypeConnectorBug} {
		if e.Retryable() {
			t.Errorf("%q should not be retryable", e)
		}
	}
}

// --- Actors ---

func TestActors_Valid(t *testing.T) {
	for _, a := range AllActors() {
		if !a.Valid() {
			t.Errorf("actor %q should be valid", a)
		}
	}
	if Actor("robot").Valid() {
		t.Error("unknown actor must be invalid")
	}
}
