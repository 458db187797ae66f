package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/listopadhq/listopad/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPConnector — generic коннектор для каталогов с HTTP API.
//
// Отправляет заявку POST'ом на Directory.SubmitURL и разбирает
// JSON-ответ каталога в Outcome. Транспортные сбои классифицируются
// в типы ошибок таксономии и возвращаются как Outcome, а не error:
// воркер всегда получает осмысленный результат для перехода статуса.
//
// Формат ответа каталога:
//   - submission_id (string): внешний идентификатор заявки
//   - status (string): submitted | already_listed | rejected
//   - action (object): {type, url, required_fields, deadline} — если
//     каталог требует действия человека
//   - error (object): {type, code, message} — если каталог отклонил
//     запрос с машинной классификацией
type HTTPConnector struct {
	client *http.Client
}

// NewHTTPConnector создаёт коннектор. client == nil — клиент
// с таймаутом по умолчанию.
func NewHTTPConnector(client *http.Client) *HTTPConnector {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPConnector{client: client}
}

// submitBody — тело запроса к каталогу.
type submitBody struct {
	BusinessID string `json:"business_id"`
	RunID      string `json:"run_id"`
	AttemptNo  int    `json:"attempt_no"`
	Directory  string `json:"directory"`
}

// submitResponse — разобранный ответ каталога.
type submitResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	Action       *struct {
		Type           string     `json:"type"`
		URL            string     `json:"url"`
		RequiredFields []string   `json:"required_fields"`
		Deadline       *time.Time `json:"deadline"`
	} `json:"action"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit отправляет заявку в каталог.
func (c *HTTPConnector) Submit(ctx context.Context, req *SubmitRequest) (*Outcome, error) {
	if req.Directory.SubmitURL == "" {
		return nil, fmt.Errorf("%w: submit_url is empty for %s", ErrSubmitRequest, req.Directory.Slug)
	}

	body, err := json.Marshal(submitBody{
		BusinessID: req.Target.BusinessID.String(),
		RunID:      req.Run.ID.String(),
		AttemptNo:  req.Run.AttemptNo,
		Directory:  req.Directory.Slug,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %v", ErrSubmitRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Directory.SubmitURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrSubmitRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return transportOutcome(err), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Outcome{
			Kind: OutcomeDeferred,
			Error: &domain.LastErrorInfo{
				Type:    domain.ErrTypeNetwork,
				Message: "read response: " + err.Error(),
			},
		}, nil
	}

	if resp.StatusCode >= 400 {
		return httpErrorOutcome(resp, respBody), nil
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return &Outcome{
			Kind: OutcomeFailed,
			Error: &domain.LastErrorInfo{
				Type:    domain.ErrTypeParsing,
				Message: "unmarshal response: " + err.Error(),
			},
		}, nil
	}

	return responseOutcome(&parsed)
}

// transportOutcome классифицирует транспортную ошибку.
// Все транспортные сбои временные: результат — deferred.
func transportOutcome(err error) *Outcome {
	errType := domain.ErrTypeNetwork

	var netErr net.Error
	var dnsErr *net.DNSError
	var tlsErr *tls.CertificateVerificationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		errType = domain.ErrTypeTimeout
	case errors.As(err, &dnsErr):
		errType = domain.ErrTypeDNS
	case errors.As(err, &tlsErr):
		errType = domain.ErrTypeTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		errType = domain.ErrTypeTimeout
	}

	return &Outcome{
		Kind: OutcomeDeferred,
		Error: &domain.LastErrorInfo{
			Type:    errType,
			Message: err.Error(),
		},
	}
}

// httpErrorOutcome классифицирует ответ с кодом >= 400.
func httpErrorOutcome(resp *http.Response, body []byte) *Outcome {
	code := strconv.Itoa(resp.StatusCode)
	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Outcome{
			Kind: OutcomeDeferred,
			Error: &domain.LastErrorInfo{
				Type:    domain.ErrTypeRateLimited,
				Code:    code,
				Message: message,
			},
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode >= 500:
		return &Outcome{
			Kind: OutcomeDeferred,
			Error: &domain.LastErrorInfo{
				Type:    domain.ErrTypeHTTPServer,
				Code:    code,
				Message: message,
			},
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Outcome{
			Kind: OutcomeFailed,
			Error: &domain.LastErrorInfo{
				Type:    domain.ErrTypeAuthFailed,
				Code:    code,
				Message: message,
			},
		}
	default:
		return &Outcome{
			Kind: OutcomeFailed,
			Error: &domain.LastErrorInfo{
				Type:    domain.ErrTypeHTTPClient,
				Code:    code,
				Message: message,
			},
		}
	}
}

// responseOutcome строит Outcome из успешного (2xx) ответа каталога.
func responseOutcome(parsed *submitResponse) (*Outcome, error) {
	if parsed.Action != nil {
		actionType := domain.ActionNeededType(parsed.Action.Type)
		if !actionType.Valid() {
			actionType = domain.ActionOther
		}
		return &Outcome{
			Kind:                 OutcomeActionNeeded,
			ExternalSubmissionID: parsed.SubmissionID,
			ActionNeeded: &domain.ActionNeededInfo{
				Type:           actionType,
				URL:            parsed.Action.URL,
				RequiredFields: parsed.Action.RequiredFields,
				Deadline:       parsed.Action.Deadline,
			},
		}, nil
	}

	if parsed.Error != nil {
		errType := domain.ErrorType(parsed.Error.Type)
		if !errType.Valid() {
			errType = domain.ErrTypeConnectorBug
		}
		kind := OutcomeFailed
		if errType.Retryable() {
			kind = OutcomeDeferred
		}
		return &Outcome{
			Kind:                 kind,
			ExternalSubmissionID: parsed.SubmissionID,
			Error: &domain.LastErrorInfo{
				Type:    errType,
				Code:    parsed.Error.Code,
				Message: parsed.Error.Message,
			},
		}, nil
	}

	switch parsed.Status {
	case "already_listed":
		return &Outcome{
			Kind:                 OutcomeAlreadyListed,
			ExternalSubmissionID: parsed.SubmissionID,
		}, nil
	case "submitted", "ok", "":
		return &Outcome{
			Kind:                 OutcomeSubmitted,
			ExternalSubmissionID: parsed.SubmissionID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %q", ErrBadOutcome, parsed.Status)
	}
}

// retryAfter читает подсказку Retry-After (секунды).
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
