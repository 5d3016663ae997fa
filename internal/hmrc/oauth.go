package hmrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenResponse is the authority's token endpoint payload for both the
// authorization-code and refresh-token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ExpiresAt converts the relative expiry into an absolute timestamp.
func (tr TokenResponse) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(tr.ExpiresIn) * time.Second)
}

// OAuthClient speaks to the authority's OAuth endpoints.
type OAuthClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
}

// NewOAuthClient creates an OAuth client for the HMRC token endpoint.
func NewOAuthClient(baseURL, clientID, clientSecret, redirectURI string, timeout time.Duration) *OAuthClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OAuthClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// AuthorizeURL builds the user-facing authorization URL for the connect flow.
func (c *OAuthClient) AuthorizeURL(scope, state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	return c.baseURL + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode swaps an authorization code for a token pair.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	return c.token(ctx, form)
}

// Refresh exchanges a refresh token for a new token pair.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.token(ctx, form)
}

func (c *OAuthClient) token(ctx context.Context, form url.Values) (TokenResponse, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, parseAuthorityError(resp)
	}

	var payload TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return TokenResponse{}, fmt.Errorf("token response missing access token")
	}
	return payload, nil
}
