package erpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

// HTTPClient sends requests to ERP HTTP APIs. It never retries; wrap it in
// a ResilientClient for that.
type HTTPClient struct {
	httpClient  *resty.Client
	credentials providers.CredentialsProvider
	metrics     *observability.Metrics
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	StatusCode *int            `json:"statusCode"`
	Message    string          `json:"message"`
}

// NewHTTPClient creates an ERP HTTP client
func NewHTTPClient(credentials providers.CredentialsProvider, timeout time.Duration, metrics *observability.Metrics) *HTTPClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		httpClient:  client,
		credentials: credentials,
		metrics:     metrics,
	}
}

// Send performs one request and unwraps the {data, statusCode} envelope
func (c *HTTPClient) Send(ctx context.Context, integration *entities.Integration, req Request) (*Response, error) {
	creds, err := c.credentials.GetConfig(ctx, integration)
	if err != nil {
		return nil, apperrors.NewIntegrationError(integration.ID, "failed to load erp credentials", 0, err)
	}
	if strings.TrimSpace(creds.APIURL) == "" {
		return nil, apperrors.NewIntegrationError(integration.ID, "erp api url is not configured", 0, nil)
	}

	endpoint := strings.TrimRight(creds.APIURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	ctx, correlationID := ensureCorrelationID(ctx)

	r := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(creds.APIToken).
		SetHeader(HeaderCorrelationID, correlationID)
	if req.Payload != nil {
		r.SetBody(req.Payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	start := time.Now()
	resp, err := r.Execute(method, endpoint)
	if err != nil {
		c.metrics.RecordERPRequest(ctx, integration.ID, method, req.Path, 0, time.Since(start))
		return nil, apperrors.NewIntegrationError(integration.ID, fmt.Sprintf("%s %s failed", method, req.Path), 0, err)
	}

	status := resp.StatusCode()
	c.metrics.RecordERPRequest(ctx, integration.ID, method, req.Path, status, time.Since(start))

	if status == http.StatusConflict {
		return nil, apperrors.NewScheduleConflictError(integration.ID, conflictMessage(resp.Body()))
	}
	if status < 200 || status >= 300 {
		return nil, apperrors.NewIntegrationError(integration.ID,
			fmt.Sprintf("%s %s returned status %d", method, req.Path, status), status,
			errors.New(truncate(resp.Body(), 512)))
	}

	body := resp.Body()
	if len(body) == 0 {
		return &Response{StatusCode: status}, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.NewIntegrationError(integration.ID, fmt.Sprintf("%s %s returned invalid json", method, req.Path), status, err)
	}

	if env.StatusCode != nil {
		switch {
		case *env.StatusCode == http.StatusConflict:
			return nil, apperrors.NewScheduleConflictError(integration.ID, env.Message)
		case *env.StatusCode >= 400:
			return nil, apperrors.NewIntegrationError(integration.ID,
				fmt.Sprintf("%s %s reported status %d: %s", method, req.Path, *env.StatusCode, env.Message),
				*env.StatusCode, nil)
		}
	}

	return &Response{StatusCode: status, Data: env.Data}, nil
}

func conflictMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return "slot is no longer available"
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
