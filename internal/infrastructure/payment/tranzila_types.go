package payment

// Tranzila API request and response bodies

type tranzilaClient struct {
	Name          string `json:"name,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	AddressLine1  string `json:"address_line_1,omitempty"`
	ID            string `json:"id,omitempty"`
}

type tranzilaItem struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	UnitPrice   float64 `json:"unit_price"`
	UnitsNumber int     `json:"units_number"`
	VATPercent  float64 `json:"vat_percent"`
}

type tranzilaCard struct {
	Token       string `json:"token,omitempty"`
	Number      string `json:"card_number,omitempty"`
	CVV         string `json:"cvv,omitempty"`
	ExpireMonth int    `json:"expire_month"`
	ExpireYear  int    `json:"expire_year"`
	HolderName  string `json:"card_holder_name,omitempty"`
}

type tranzilaChargeRequest struct {
	TerminalName       string         `json:"terminal_name"`
	TxnCurrencyCode    int            `json:"txn_currency_code"`
	TxnType            string         `json:"txn_type"`
	PaymentPlan        int            `json:"payment_plan"`
	InstallmentsNumber int            `json:"installments_number,omitempty"`
	Card               tranzilaCard   `json:"card"`
	Client             tranzilaClient `json:"client"`
	Items              []tranzilaItem `json:"items"`
	Remarks            string         `json:"remarks,omitempty"`
	ReferenceTxnID     string         `json:"reference_txn_id,omitempty"`
}

type tranzilaTransactionResult struct {
	ProcessorResponseCode string  `json:"processor_response_code"`
	TransactionID         string  `json:"transaction_id"`
	AuthNumber            string  `json:"auth_number"`
	Amount                float64 `json:"amount"`
}

type tranzilaChargeResponse struct {
	ErrorCode         int                        `json:"error_code"`
	Message           string                     `json:"message"`
	TransactionResult *tranzilaTransactionResult `json:"transaction_result"`
}

type tranzilaStandingOrderRequest struct {
	TerminalName    string         `json:"terminal_name"`
	Currency        int            `json:"currency_code"`
	StartDate       string         `json:"sto_start_date"`
	PaymentsNumber  int            `json:"sto_payments_number"`
	ChargeFrequency string         `json:"charge_frequency"`
	Client          tranzilaClient `json:"client"`
	Items           []tranzilaItem `json:"items"`
	Remarks         string         `json:"remarks,omitempty"`
}

type tranzilaStandingOrderResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	StoID     string `json:"sto_id"`
}

type tranzilaTokenizeRequest struct {
	TerminalName string       `json:"terminal_name"`
	Card         tranzilaCard `json:"card"`
}

type tranzilaTokenizeResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Token     string `json:"token"`
}
