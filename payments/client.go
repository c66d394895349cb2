package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	config "github.com/mutisya87/trainer_marketplace/configs"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

var (
	gatewayToken       string
	gatewayTokenExpiry time.Time
	tokenMutex         sync.RWMutex
)

// httpGateway talks to the external payment gateway's REST API.
type httpGateway struct {
	client *http.Client
}

// NewHTTPGateway returns the real gateway client. Calls are bounded by the
// client timeout; a timed-out call surfaces as a retryable GatewayError.
func NewHTTPGateway() (Gateway, error) {
	if config.Config("GATEWAY_API_BASE_URL") == "" || config.Config("GATEWAY_CLIENT_ID") == "" {
		return nil, ErrNotConfigured
	}
	return &httpGateway{client: &http.Client{Timeout: 20 * time.Second}}, nil
}

func getGatewayAccessToken(client *http.Client) (string, error) {
	tokenMutex.RLock()
	if gatewayToken != "" && time.Now().Before(gatewayTokenExpiry) {
		token := gatewayToken
		tokenMutex.RUnlock()
		return token, nil
	}
	tokenMutex.RUnlock()

	tokenMutex.Lock()
	defer tokenMutex.Unlock()

	if gatewayToken != "" && time.Now().Before(gatewayTokenExpiry) {
		return gatewayToken, nil
	}

	log.Println("Fetching new gateway access token...")
	apiBase := config.Config("GATEWAY_API_BASE_URL")
	clientID := config.Config("GATEWAY_CLIENT_ID")
	clientSecret := config.Config("GATEWAY_CLIENT_SECRET")

	reqBody := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/oauth2/token", apiBase), reqBody)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway token API returned non-200 status: %s", resp.Status)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	gatewayToken = tokenResp.AccessToken
	gatewayTokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-300) * time.Second)

	return gatewayToken, nil
}

func (g *httpGateway) doJSON(ctx context.Context, op, method, path string, payload interface{}, out interface{}) error {
	accessToken, err := getGatewayAccessToken(g.client)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}

	apiBase := config.Config("GATEWAY_API_BASE_URL")

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := g.client.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &GatewayError{Op: op, Err: fmt.Errorf("status %s: %s", resp.Status, string(respBody))}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (g *httpGateway) ConnectURL(state string) (string, error) {
	authorizeURL := config.Config("GATEWAY_CONNECT_AUTHORIZE_URL")
	clientID := config.Config("GATEWAY_CLIENT_ID")
	if authorizeURL == "" || clientID == "" {
		return "", ErrNotConfigured
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("scope", "read_write")
	q.Set("state", state)
	return fmt.Sprintf("%s?%s", authorizeURL, q.Encode()), nil
}

func (g *httpGateway) ExchangeCode(ctx context.Context, code string) (*Account, error) {
	var result struct {
		AccountID string `json:"account_id"`
	}
	payload := map[string]string{"grant_type": "authorization_code", "code": code}
	if err := g.doJSON(ctx, "exchange_code", "POST", "/v1/oauth2/connect", payload, &result); err != nil {
		return nil, ErrExchangeFailed
	}
	if result.AccountID == "" {
		return nil, ErrExchangeFailed
	}
	return g.GetAccount(ctx, result.AccountID)
}

func (g *httpGateway) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var acct Account
	if err := g.doJSON(ctx, "get_account", "GET", "/v1/accounts/"+accountID, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (g *httpGateway) CreateTransfer(ctx context.Context, accountID string, amountCents int64, currency, bookingRef string) (*Transfer, error) {
	payload := map[string]interface{}{
		"destination":  accountID,
		"amount_cents": amountCents,
		"currency":     currency,
		"booking_ref":  bookingRef,
	}
	var tr Transfer
	if err := g.doJSON(ctx, "create_transfer", "POST", "/v1/transfers", payload, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (g *httpGateway) FindTransferByBooking(ctx context.Context, bookingRef string) (*Transfer, error) {
	var result struct {
		Transfers []Transfer `json:"transfers"`
	}
	path := "/v1/transfers?booking_ref=" + url.QueryEscape(bookingRef)
	if err := g.doJSON(ctx, "find_transfer", "GET", path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Transfers) == 0 {
		return nil, nil
	}
	return &result.Transfers[0], nil
}

func (g *httpGateway) RefundPayment(ctx context.Context, bookingRef string, amountCents int64) error {
	payload := map[string]interface{}{
		"booking_ref":  bookingRef,
		"amount_cents": amountCents,
	}
	return g.doJSON(ctx, "refund_payment", "POST", "/v1/refunds", payload, nil)
}

func (g *httpGateway) RevokeAccount(ctx context.Context, accountID string) error {
	payload := map[string]string{"account_id": accountID}
	return g.doJSON(ctx, "revoke_account", "POST", "/v1/oauth2/revoke", payload, nil)
}
