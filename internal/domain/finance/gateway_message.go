package finance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GatewayMessage is one raw message posted by the embedded payment frame:
// the origin the browser reported for the sender and the untyped payload.
type GatewayMessage struct {
	Origin string `json:"origin"`
	Data   any    `json:"data"`
}

// GatewayMessageKind discriminates the shapes a frame message can take
type GatewayMessageKind int

const (
	GatewayMessageUnrecognized GatewayMessageKind = iota
	// GatewayMessageWrapped is {type|event, data} with the result under data
	GatewayMessageWrapped
	// GatewayMessageDirect carries type, event or status next to the result fields
	GatewayMessageDirect
	// GatewayMessageLegacyJSON is a JSON string from the gateway origin
	GatewayMessageLegacyJSON
	// GatewayMessageLegacyQuery is a query-encoded string from the gateway origin
	GatewayMessageLegacyQuery
	// GatewayMessageLegacyObject is a plain object of legacy response fields from the gateway origin
	GatewayMessageLegacyObject
)

// String returns the string representation of GatewayMessageKind
func (k GatewayMessageKind) String() string {
	switch k {
	case GatewayMessageWrapped:
		return "wrapped"
	case GatewayMessageDirect:
		return "direct"
	case GatewayMessageLegacyJSON:
		return "legacy_json"
	case GatewayMessageLegacyQuery:
		return "legacy_query"
	case GatewayMessageLegacyObject:
		return "legacy_object"
	default:
		return "unrecognized"
	}
}

// ClassifiedGatewayMessage is a frame message resolved to exactly one shape.
// Fields holds the object that carries the response fields for that shape.
type ClassifiedGatewayMessage struct {
	Kind   GatewayMessageKind
	Event  string
	Fields map[string]any
	Reason string
}

// GatewayResult is the canonical outcome of a gateway interaction and the
// only gateway type the rest of the system depends on.
type GatewayResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"tx_id,omitempty"`
	Token         string `json:"token,omitempty"`
	AuthCode      string `json:"auth_code,omitempty"`
	CardLast4     string `json:"card_last4,omitempty"`
	ExpMonth      string `json:"exp_month,omitempty"`
	ExpYear       string `json:"exp_year,omitempty"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Expiry returns the card expiry as MM/YY, or "" when the gateway did not send it
func (r GatewayResult) Expiry() string {
	if r.ExpMonth == "" || r.ExpYear == "" {
		return ""
	}
	month := r.ExpMonth
	if len(month) == 1 {
		month = "0" + month
	}
	year := r.ExpYear
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	return month + "/" + year
}

// DedupeKey identifies a result so repeated posts of it can be ignored
func (r GatewayResult) DedupeKey() string {
	status := "declined"
	if r.Success {
		status = "approved"
	}
	switch {
	case r.TransactionID != "":
		return status + ":tx:" + r.TransactionID
	case r.Token != "":
		return status + ":tk:" + r.Token
	default:
		return ""
	}
}

// DeclineError converts a failed result into the error surfaced to the user
func (r GatewayResult) DeclineError() *GatewayDeclineError {
	if r.Success {
		return nil
	}
	return &GatewayDeclineError{Code: r.Code, Message: r.Error}
}

// GatewayMessageNormalizer turns untrusted frame messages into results.
// Wrapped and direct messages are accepted from the gateway domain and from
// the console's own origins (the return page relays them); legacy payloads
// only from the gateway domain.
type GatewayMessageNormalizer struct {
	gatewayDomain  string
	consoleOrigins map[string]struct{}
}

// NewGatewayMessageNormalizer creates a normalizer for the given gateway
// domain (e.g. "tranzila.com") and console origins (e.g. "https://console.example.org").
func NewGatewayMessageNormalizer(gatewayDomain string, consoleOrigins ...string) *GatewayMessageNormalizer {
	origins := make(map[string]struct{}, len(consoleOrigins))
	for _, o := range consoleOrigins {
		if n := normalizeOrigin(o); n != "" {
			origins[n] = struct{}{}
		}
	}
	return &GatewayMessageNormalizer{
		gatewayDomain:  strings.ToLower(strings.Trim(gatewayDomain, ". ")),
		consoleOrigins: origins,
	}
}

// IsGatewayOrigin reports whether origin belongs to the gateway domain or one of its subdomains
func (n *GatewayMessageNormalizer) IsGatewayOrigin(origin string) bool {
	if n.gatewayDomain == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == n.gatewayDomain || strings.HasSuffix(host, "."+n.gatewayDomain)
}

func (n *GatewayMessageNormalizer) isConsoleOrigin(origin string) bool {
	_, ok := n.consoleOrigins[normalizeOrigin(origin)]
	return ok
}

// Classify resolves a message to one shape. Detectors run in a fixed order
// and the first one that matches decides the kind.
func (n *GatewayMessageNormalizer) Classify(msg GatewayMessage) ClassifiedGatewayMessage {
	fromGateway := n.IsGatewayOrigin(msg.Origin)
	if !fromGateway && !n.isConsoleOrigin(msg.Origin) {
		return unrecognized("untrusted origin")
	}

	if obj, ok := asObject(msg.Data); ok {
		if c, ok := classifyEnvelope(obj); ok {
			return c
		}
		if fromGateway {
			return ClassifiedGatewayMessage{Kind: GatewayMessageLegacyObject, Fields: obj}
		}
		return unrecognized("object without event descriptor")
	}

	s, ok := msg.Data.(string)
	if !ok {
		return unrecognized(fmt.Sprintf("unsupported payload type %T", msg.Data))
	}
	if !fromGateway {
		return unrecognized("string payload from non-gateway origin")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return unrecognized("empty payload")
	}

	if obj, err := decodeJSONObject([]byte(s)); err == nil {
		if c, ok := classifyEnvelope(obj); ok && c.Kind == GatewayMessageWrapped {
			c.Kind = GatewayMessageLegacyJSON
			return c
		}
		return ClassifiedGatewayMessage{Kind: GatewayMessageLegacyJSON, Fields: obj}
	}

	values, err := url.ParseQuery(strings.TrimPrefix(s, "?"))
	if err != nil || len(values) == 0 {
		return unrecognized("payload is neither JSON nor query string")
	}
	fields := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return ClassifiedGatewayMessage{Kind: GatewayMessageLegacyQuery, Fields: fields}
}

// Normalize converts a message into at most one result. A nil result with a
// *GatewayProtocolError means the message was dropped.
func (n *GatewayMessageNormalizer) Normalize(msg GatewayMessage) (*GatewayResult, error) {
	c := n.Classify(msg)
	if c.Kind == GatewayMessageUnrecognized {
		return nil, &GatewayProtocolError{Origin: msg.Origin, Reason: c.Reason}
	}
	result, ok := InterpretGatewayFields(c.Fields)
	if !ok {
		return nil, &GatewayProtocolError{Origin: msg.Origin, Reason: "no result fields in " + c.Kind.String() + " message"}
	}
	return &result, nil
}

func unrecognized(reason string) ClassifiedGatewayMessage {
	return ClassifiedGatewayMessage{Kind: GatewayMessageUnrecognized, Reason: reason}
}

// classifyEnvelope applies the wrapper and direct detectors
func classifyEnvelope(obj map[string]any) (ClassifiedGatewayMessage, bool) {
	event := firstString(obj, "type", "event")
	if event != "" {
		if inner, ok := obj["data"]; ok {
			if innerObj, ok := asObject(inner); ok {
				return ClassifiedGatewayMessage{Kind: GatewayMessageWrapped, Event: event, Fields: innerObj}, true
			}
			if s, ok := inner.(string); ok {
				if innerObj, err := decodeJSONObject([]byte(s)); err == nil {
					return ClassifiedGatewayMessage{Kind: GatewayMessageWrapped, Event: event, Fields: innerObj}, true
				}
			}
		}
	}
	if event != "" || hasAnyKey(obj, "type", "event", "status") {
		return ClassifiedGatewayMessage{Kind: GatewayMessageDirect, Event: event, Fields: obj}, true
	}
	return ClassifiedGatewayMessage{}, false
}

var (
	gatewaySuccessCodes = map[string]struct{}{"000": {}, "0": {}}

	statusApproved = map[string]struct{}{"success": {}, "approved": {}, "ok": {}, "completed": {}, "paid": {}}
	statusDeclined = map[string]struct{}{"error": {}, "failed": {}, "failure": {}, "declined": {}, "rejected": {}, "cancelled": {}, "canceled": {}}

	codeKeys     = []string{"response", "responsecode", "response_code", "code", "resultcode", "result_code"}
	tokenKeys    = []string{"tranzilatk", "token", "tk", "cardtoken", "card_token"}
	txKeys       = []string{"txid", "tx_id", "transactionid", "transaction_id", "index", "tranzilaindex", "tranzila_index"}
	authKeys     = []string{"confirmationcode", "confirmation_code", "authcode", "auth_code", "authnumber", "auth_number"}
	last4Keys    = []string{"cardlast4", "card_last4", "last4", "last_4", "ccno", "cardmask", "card_mask"}
	expMonthKeys = []string{"expmonth", "exp_month"}
	expYearKeys  = []string{"expyear", "exp_year"}
	// errorKeys mark a payload as a result; messageKeys only supply decline text.
	errorKeys   = []string{"error", "errormessage", "error_message"}
	messageKeys = []string{"message", "responsedescription", "response_description", "description", "reason"}
)

// InterpretGatewayFields reads the response fields of a classified message.
// ok is false when the object carries nothing result-bearing (no code,
// success flag, token, error or known status), so the message is noise.
// Unknown status values such as "loaded" do not count.
//
// Success when the code is "000" or "0" (string or number), when an explicit
// success flag is true, or when a token is present with no error indicator
// at all. The last rule trusts the frame to omit the code only on success.
func InterpretGatewayFields(fields map[string]any) (result GatewayResult, ok bool) {
	f := lowerKeys(fields)

	code, hasCode := lookupString(f, codeKeys...)
	token, _ := lookupString(f, tokenKeys...)
	errText, _ := lookupString(f, errorKeys...)

	var successFlag *bool
	if v, found := f["success"]; found {
		if b, isBool := asBool(v); isBool {
			successFlag = &b
		}
	}

	statusKnown, statusOK := false, false
	if status, found := lookupString(f, "status"); found {
		s := strings.ToLower(status)
		if _, ok := statusApproved[s]; ok {
			statusKnown, statusOK = true, true
		} else if _, ok := statusDeclined[s]; ok {
			statusKnown = true
		}
	}

	if !hasCode && successFlag == nil && token == "" && errText == "" && !statusKnown {
		return GatewayResult{}, false
	}

	_, codeOK := gatewaySuccessCodes[code]
	failureIndicated := hasCode || errText != "" || (statusKnown && !statusOK) || (successFlag != nil && !*successFlag)

	success := (hasCode && codeOK) ||
		(successFlag != nil && *successFlag) ||
		(statusKnown && statusOK && !hasCode) ||
		(token != "" && !failureIndicated)

	result.Code = code
	result.TransactionID, _ = lookupString(f, txKeys...)
	if !success {
		result.Error = declineText(errText, f, code, hasCode)
		return result, true
	}

	result.Success = true
	result.Token = token
	result.AuthCode, _ = lookupString(f, authKeys...)
	if masked, found := lookupString(f, last4Keys...); found {
		result.CardLast4 = lastDigits(masked, 4)
	}
	result.ExpMonth, _ = lookupString(f, expMonthKeys...)
	result.ExpYear, _ = lookupString(f, expYearKeys...)
	if result.ExpMonth == "" && result.ExpYear == "" {
		if expdate, found := lookupString(f, "expdate"); found && len(expdate) == 4 && digitsOnly(expdate) {
			result.ExpMonth, result.ExpYear = expdate[:2], expdate[2:]
		}
	}
	return result, true
}

func declineText(errText string, f map[string]any, code string, hasCode bool) string {
	if errText != "" {
		return errText
	}
	if msg, found := lookupString(f, messageKeys...); found {
		return msg
	}
	if hasCode {
		return fmt.Sprintf("the card was declined by the payment gateway (code %s)", code)
	}
	return "the card was declined by the payment gateway"
}

func normalizeOrigin(origin string) string {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func decodeJSONObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("json payload is not an object")
	}
	return obj, nil
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// lookupString returns the first non-empty scalar under keys, rendered as a string
func lookupString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, found := m[k]
		if !found {
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}
