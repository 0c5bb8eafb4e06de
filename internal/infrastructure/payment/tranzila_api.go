package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	tranzilaChargePath        = "/v1/transaction/credit_card/create"
	tranzilaStandingOrderPath = "/v2/sto/create"
	tranzilaTokenizePath      = "/v1/credit_card/tokenize"

	headerAppKey      = "X-tranzila-api-app-key"
	headerRequestTime = "X-tranzila-api-request-time"
	headerNonce       = "X-tranzila-api-nonce"
	headerAccessToken = "X-tranzila-api-access-token"

	nonceBytes = 40
)

// tranzilaAPI performs signed server-to-server calls
type tranzilaAPI struct {
	config     TranzilaConfig
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

func newTranzilaAPI(config TranzilaConfig, httpClient *http.Client, logger *zap.Logger) *tranzilaAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.HTTPTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tranzilaAPI{
		config:     config,
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger,
	}
}

// post sends body as JSON to path and decodes the response into out.
// Transport failures and 5xx responses come back as *finance.NetworkError.
func (a *tranzilaAPI) post(ctx context.Context, op, path string, body, out any) (err error) {
	ctx, span := telemetry.StartGatewaySpan(ctx, "tranzila", op)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tranzila: failed to marshal request: %w", err)
	}

	url := strings.TrimRight(a.config.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("tranzila: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := a.sign(req.Header); err != nil {
		return fmt.Errorf("tranzila: failed to sign request: %w", err)
	}

	start := a.now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return finance.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return finance.NewNetworkError(op, fmt.Errorf("read response: %w", err))
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)
	a.logger.Debug("tranzila request completed",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", a.now().Sub(start)))

	if resp.StatusCode >= http.StatusInternalServerError {
		return finance.NewNetworkError(op, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return finance.NewNetworkError(op, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return finance.NewNetworkError(op, fmt.Errorf("parse response: %w", err))
	}
	return nil
}

// sign sets the authentication headers. The access token is the hex
// HMAC-SHA256 of app key, request time and nonce keyed with the secret.
func (a *tranzilaAPI) sign(h http.Header) error {
	nonce, err := generateNonce()
	if err != nil {
		return err
	}
	requestTime := strconv.FormatInt(a.now().Unix(), 10)

	h.Set(headerAppKey, a.config.AppKey)
	h.Set(headerRequestTime, requestTime)
	h.Set(headerNonce, nonce)
	h.Set(headerAccessToken, accessToken(a.config.Secret, a.config.AppKey, requestTime, nonce))
	return nil
}

func accessToken(secret, appKey, requestTime, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(appKey + requestTime + nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// declineFromAPI turns a non-zero API error code into a decline
func declineFromAPI(code int, message string) *finance.GatewayDeclineError {
	if message == "" {
		message = "the gateway rejected the request"
	}
	return &finance.GatewayDeclineError{Code: strconv.Itoa(code), Message: message}
}

// splitExpiry parses MM/YY into month and four digit year
func splitExpiry(expiry string) (month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("tranzila: invalid expiry %q", expiry)
	}
	month, err = strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("tranzila: invalid expiry month %q", parts[0])
	}
	yy, err := strconv.Atoi(parts[1])
	if err != nil || yy < 0 || yy > 99 {
		return 0, 0, fmt.Errorf("tranzila: invalid expiry year %q", parts[1])
	}
	return month, 2000 + yy, nil
}

func clientFromPayer(p finance.PayerDetails, memberID string) tranzilaClient {
	name := p.CompanyName
	if name == "" {
		name = p.FullName()
	}
	return tranzilaClient{
		Name:          name,
		ContactPerson: p.FullName(),
		Email:         p.Email,
		PhoneNumber:   p.Mobile,
		AddressLine1:  p.Address,
		ID:            memberID,
	}
}
