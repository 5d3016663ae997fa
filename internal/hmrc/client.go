package hmrc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gitlab.com/taxquarter/backend/internal/logger"
)

// Client is the single authenticated-request primitive for the HMRC business
// APIs. Every call resolves a valid access token, attaches the
// fraud-prevention bundle and the versioned Accept header, and normalizes
// error responses into AuthorityError.
type Client struct {
	baseURL    string
	apiVersion string
	tokens     *TokenSource
	fraud      *FraudHeaderGenerator
	httpClient *http.Client
}

// NewClient creates an HMRC API client.
func NewClient(baseURL, apiVersion string, tokens *TokenSource, fraud *FraudHeaderGenerator, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		tokens:     tokens,
		fraud:      fraud,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Do performs one authenticated request against the business API. A 204
// response is a successful empty result. Non-2xx responses come back as
// *AuthorityError with the authority's own status and error code preserved.
func (c *Client) Do(
	ctx context.Context,
	userID string,
	facts ClientFacts,
	method, path string,
	body any,
) (json.RawMessage, error) {
	// Token resolution must complete before header generation, which must
	// complete before the network call. Strictly sequential per request.
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = c.fraud.Build(userID, facts)
	req.Header.Set("Accept", fmt.Sprintf("application/vnd.hmrc.%s+json", c.apiVersion))
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Log.Debug().
		Str("method", method).
		Str("path", path).
		Str("user_hash", logger.HashUserID(userID)).
		Msg("HMRC API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hmrc request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		authErr := authorityErrorFromBody(resp.StatusCode, payload)
		logger.Log.Warn().
			Int("status", authErr.Status).
			Str("code", authErr.Code).
			Str("path", path).
			Msg("HMRC API error")
		return nil, authErr
	}

	return payload, nil
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, userID string, facts ClientFacts, path string) (json.RawMessage, error) {
	return c.Do(ctx, userID, facts, http.MethodGet, path, nil)
}

// Post performs an authenticated POST.
func (c *Client) Post(ctx context.Context, userID string, facts ClientFacts, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, userID, facts, http.MethodPost, path, body)
}

// Put performs an authenticated PUT.
func (c *Client) Put(ctx context.Context, userID string, facts ClientFacts, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, userID, facts, http.MethodPut, path, body)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func authorityErrorFromBody(status int, payload []byte) *AuthorityError {
	var body errorBody
	if err := json.Unmarshal(payload, &body); err == nil {
		code, message := body.Code, body.Message
		// Multi-error bodies keep the first detailed code.
		if code == "" && len(body.Errors) > 0 {
			code, message = body.Errors[0].Code, body.Errors[0].Message
		}
		if code != "" {
			return &AuthorityError{Status: status, Code: code, Message: message}
		}
	}
	return &AuthorityError{
		Status:  status,
		Code:    "UNKNOWN",
		Message: strings.TrimSpace(string(payload)),
	}
}

func parseAuthorityError(resp *http.Response) error {
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}
	return authorityErrorFromBody(resp.StatusCode, payload)
}
