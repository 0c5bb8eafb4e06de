package payment

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/community/console/internal/domain/finance"
)

const (
	tranzilaFramePath = "/iframenew.php"

	credTypeRegular      = "1"
	credTypeInstallments = "8"

	// tranmode VK verifies the card and returns a token without charging it
	frameTranMode = "VK"
	// the frame posts its result to the parent window instead of redirecting
	frameResultMode = "postmessage"
)

var (
	ErrFrameInvalidAmount       = errors.New("tranzila: frame amount must be positive")
	ErrFrameInvalidInstallments = errors.New("tranzila: frame installments out of range")
)

// TranzilaFrame builds hosted payment frame URLs
type TranzilaFrame struct {
	config TranzilaConfig
}

// NewTranzilaFrame creates a frame URL builder
func NewTranzilaFrame(config TranzilaConfig) (*TranzilaFrame, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TranzilaFrame{config: config}, nil
}

// FrameURL implements finance.GatewayFrame
func (f *TranzilaFrame) FrameURL(req finance.FrameRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", ErrFrameInvalidAmount
	}
	if req.Installments < finance.MinInstallments || req.Installments > finance.MaxInstallments {
		return "", ErrFrameInvalidInstallments
	}

	q := url.Values{}
	q.Set("sum", req.Amount.StringFixed(2))
	q.Set("currency", strconv.Itoa(f.config.Currency))
	q.Set("tranmode", frameTranMode)
	q.Set("lang", f.config.Language)
	q.Set("nologo", "1")
	q.Set("result_mode", frameResultMode)
	q.Set("session_id", req.SessionID.String())
	if req.Installments > 1 {
		q.Set("cred_type", credTypeInstallments)
		q.Set("npay", strconv.Itoa(req.Installments-1))
	} else {
		q.Set("cred_type", credTypeRegular)
	}
	if req.Description != "" {
		q.Set("pdesc", req.Description)
	}
	setIfNotEmpty(q, "contact", req.Payer.FullName())
	setIfNotEmpty(q, "company", req.Payer.CompanyName)
	setIfNotEmpty(q, "email", req.Payer.Email)
	setIfNotEmpty(q, "phone", req.Payer.Mobile)
	setIfNotEmpty(q, "address", req.Payer.Address)

	base := strings.TrimRight(f.config.FrameBaseURL, "/")
	return base + "/" + url.PathEscape(f.config.Terminal) + tranzilaFramePath + "?" + q.Encode(), nil
}

func setIfNotEmpty(q url.Values, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		q.Set(key, v)
	}
}

var _ finance.GatewayFrame = (*TranzilaFrame)(nil)
