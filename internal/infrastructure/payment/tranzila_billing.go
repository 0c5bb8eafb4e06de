package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/community/console/internal/domain/finance"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	tranzilaTxnDebit           = "debit"
	tranzilaPlanRegular        = 1
	tranzilaPlanInstallments   = 8
	tranzilaItemTypeInvoice    = "I"
	tranzilaMonthlyFrequency   = "monthly"
	tranzilaApprovedCode       = "000"
	tranzilaStoStartDateLayout = "2006-01-02"
	defaultChargeItemName      = "Payment"
)

var ErrMissingCardToken = errors.New("tranzila: selected card has no gateway token")

// TranzilaBilling submits session snapshots to Tranzila
type TranzilaBilling struct {
	api    *tranzilaAPI
	logger *zap.Logger
}

// NewTranzilaBilling creates the billing collaborator
func NewTranzilaBilling(config TranzilaConfig, httpClient *http.Client, logger *zap.Logger) (*TranzilaBilling, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranzilaBilling{
		api:    newTranzilaAPI(config, httpClient, logger),
		logger: logger,
	}, nil
}

// Submit implements finance.Billing. Card modes charge the stored token;
// a standing order is registered and reported as pending until the first
// collection.
func (b *TranzilaBilling) Submit(ctx context.Context, snapshot finance.SessionSnapshot) (*finance.ChargeResult, error) {
	if snapshot.PaymentMethod.Mode == finance.PaymentModeStandingOrder {
		return b.registerStandingOrder(ctx, snapshot)
	}
	return b.charge(ctx, snapshot)
}

func (b *TranzilaBilling) charge(ctx context.Context, snapshot finance.SessionSnapshot) (*finance.ChargeResult, error) {
	if snapshot.Card == nil || snapshot.Card.Token == "" {
		return nil, ErrMissingCardToken
	}
	month, year, err := splitExpiry(snapshot.Card.Expiry)
	if err != nil {
		return nil, err
	}

	tx := snapshot.Transaction
	req := tranzilaChargeRequest{
		TerminalName:    b.api.config.Terminal,
		TxnCurrencyCode: b.api.config.Currency,
		TxnType:         tranzilaTxnDebit,
		PaymentPlan:     tranzilaPlanRegular,
		Card: tranzilaCard{
			Token:       snapshot.Card.Token,
			ExpireMonth: month,
			ExpireYear:  year,
			HolderName:  snapshot.Card.HolderName,
		},
		Client:  clientFromPayer(snapshot.Payer, snapshot.MemberID.String()),
		Items:   []tranzilaItem{chargeItem(tx.Description, tx.Amount, tx.VATPercent, 1)},
		Remarks: snapshot.SessionID.String(),
	}
	if tx.Installments > 1 {
		req.PaymentPlan = tranzilaPlanInstallments
		req.InstallmentsNumber = tx.Installments
	}

	var resp tranzilaChargeResponse
	if err := b.api.post(ctx, "submit charge", tranzilaChargePath, req, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != 0 {
		decline := declineFromAPI(resp.ErrorCode, resp.Message)
		return &finance.ChargeResult{Outcome: finance.ChargeOutcomeDecline, Message: decline.Message}, nil
	}
	if resp.TransactionResult == nil {
		return nil, finance.NewNetworkError("submit charge", errors.New("response without transaction result"))
	}

	result := resp.TransactionResult
	if result.ProcessorResponseCode != tranzilaApprovedCode {
		b.logger.Info("charge declined",
			zap.String("session_id", snapshot.SessionID.String()),
			zap.String("code", result.ProcessorResponseCode))
		message := resp.Message
		if message == "" {
			message = "processor response " + result.ProcessorResponseCode
		}
		return &finance.ChargeResult{
			Outcome:       finance.ChargeOutcomeDecline,
			TransactionID: result.TransactionID,
			Message:       message,
		}, nil
	}

	return &finance.ChargeResult{
		Outcome:          finance.ChargeOutcomeSuccess,
		TransactionID:    result.TransactionID,
		InvoiceReference: result.AuthNumber,
	}, nil
}

func (b *TranzilaBilling) registerStandingOrder(ctx context.Context, snapshot finance.SessionSnapshot) (*finance.ChargeResult, error) {
	tx := snapshot.Transaction
	payments := tx.Installments
	if payments < 1 {
		payments = 1
	}

	start := snapshot.TakenAt
	perPayment := tx.Amount
	if len(snapshot.Schedule) > 0 {
		start = snapshot.Schedule[0].DueDate
	}
	if payments > 1 {
		perPayment = tx.Amount.Div(decimal.NewFromInt(int64(payments))).Round(2)
	}

	req := tranzilaStandingOrderRequest{
		TerminalName:    b.api.config.Terminal,
		Currency:        b.api.config.Currency,
		StartDate:       start.Format(tranzilaStoStartDateLayout),
		PaymentsNumber:  payments,
		ChargeFrequency: tranzilaMonthlyFrequency,
		Client:          clientFromPayer(snapshot.Payer, snapshot.MemberID.String()),
		Items:           []tranzilaItem{chargeItem(tx.Description, perPayment, tx.VATPercent, 1)},
		Remarks:         snapshot.SessionID.String(),
	}

	var resp tranzilaStandingOrderResponse
	if err := b.api.post(ctx, "register standing order", tranzilaStandingOrderPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != 0 {
		decline := declineFromAPI(resp.ErrorCode, resp.Message)
		return &finance.ChargeResult{Outcome: finance.ChargeOutcomeDecline, Message: decline.Message}, nil
	}
	return &finance.ChargeResult{
		Outcome:       finance.ChargeOutcomePending,
		TransactionID: resp.StoID,
	}, nil
}

func chargeItem(description string, unitPrice, vatPercent decimal.Decimal, units int) tranzilaItem {
	if description == "" {
		description = defaultChargeItemName
	}
	return tranzilaItem{
		Name:        description,
		Type:        tranzilaItemTypeInvoice,
		UnitPrice:   unitPrice.InexactFloat64(),
		UnitsNumber: units,
		VATPercent:  vatPercent.InexactFloat64(),
	}
}

var _ finance.Billing = (*TranzilaBilling)(nil)
