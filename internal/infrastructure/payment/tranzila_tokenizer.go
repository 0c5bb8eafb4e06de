package payment

import (
	"context"
	"net/http"

	"github.com/community/console/internal/domain/finance"
	"go.uber.org/zap"
)

// CardTokenizer exchanges raw card details for a gateway token
type CardTokenizer interface {
	Tokenize(ctx context.Context, reg finance.CardRegistration) (string, error)
}

// TranzilaTokenizer tokenizes cards through the Tranzila API
type TranzilaTokenizer struct {
	api *tranzilaAPI
}

// NewTranzilaTokenizer creates a tokenizer. A nil httpClient uses a client
// with the configured timeout.
func NewTranzilaTokenizer(config TranzilaConfig, httpClient *http.Client, logger *zap.Logger) (*TranzilaTokenizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TranzilaTokenizer{api: newTranzilaAPI(config, httpClient, logger)}, nil
}

// Tokenize sends the card number to the token terminal and returns the token.
// A refusal is returned as *finance.GatewayDeclineError.
func (t *TranzilaTokenizer) Tokenize(ctx context.Context, reg finance.CardRegistration) (string, error) {
	month, year, err := splitExpiry(reg.Expiry)
	if err != nil {
		return "", err
	}

	req := tranzilaTokenizeRequest{
		TerminalName: t.api.config.tokenTerminal(),
		Card: tranzilaCard{
			Number:      reg.Number,
			CVV:         reg.CVV,
			ExpireMonth: month,
			ExpireYear:  year,
			HolderName:  reg.HolderName,
		},
	}

	var resp tranzilaTokenizeResponse
	if err := t.api.post(ctx, "tokenize card", tranzilaTokenizePath, req, &resp); err != nil {
		return "", err
	}
	if resp.ErrorCode != 0 {
		return "", declineFromAPI(resp.ErrorCode, resp.Message)
	}
	if resp.Token == "" {
		return "", finance.ErrGatewayTokenMissing
	}
	return resp.Token, nil
}

var _ CardTokenizer = (*TranzilaTokenizer)(nil)
