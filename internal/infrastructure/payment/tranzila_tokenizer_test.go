package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/community/console/internal/domain/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardRegistration() finance.CardRegistration {
	return finance.CardRegistration{
		Network:    finance.CardNetworkVisa,
		Last4:      "1111",
		Expiry:     "07/28",
		HolderName: "Dana Levi",
		Number:     "4111111111111111",
		CVV:        "123",
	}
}

func TestTranzilaTokenizer_Tokenize(t *testing.T) {
	var got tranzilaTokenizeRequest
	cfg := newTranzilaServer(t, tranzilaTokenizePath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, tranzilaTokenizeResponse{Token: "tk-77"})
	})
	cfg.TokenTerminal = "communitytok"

	tokenizer, err := NewTranzilaTokenizer(cfg, nil, nil)
	require.NoError(t, err)

	token, err := tokenizer.Tokenize(context.Background(), cardRegistration())

	require.NoError(t, err)
	assert.Equal(t, "tk-77", token)
	assert.Equal(t, "communitytok", got.TerminalName)
	assert.Equal(t, "4111111111111111", got.Card.Number)
	assert.Equal(t, 7, got.Card.ExpireMonth)
	assert.Equal(t, 2028, got.Card.ExpireYear)
	assert.Equal(t, "Dana Levi", got.Card.HolderName)
}

func TestTranzilaTokenizer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		resp    tranzilaTokenizeResponse
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "declined",
			resp: tranzilaTokenizeResponse{ErrorCode: 33, Message: "Card not valid"},
			checkFn: func(t *testing.T, err error) {
				var decline *finance.GatewayDeclineError
				require.True(t, errors.As(err, &decline))
				assert.Equal(t, "33", decline.Code)
				assert.Equal(t, "Card not valid", decline.Message)
			},
		},
		{
			name: "approved without token",
			resp: tranzilaTokenizeResponse{},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, finance.ErrGatewayTokenMissing)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTranzilaServer(t, tranzilaTokenizePath, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.resp)
			})
			tokenizer, err := NewTranzilaTokenizer(cfg, nil, nil)
			require.NoError(t, err)

			token, err := tokenizer.Tokenize(context.Background(), cardRegistration())

			assert.Empty(t, token)
			tt.checkFn(t, err)
		})
	}
}

func TestTranzilaTokenizer_InvalidExpiry(t *testing.T) {
	called := false
	cfg := newTranzilaServer(t, tranzilaTokenizePath, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	tokenizer, err := NewTranzilaTokenizer(cfg, nil, nil)
	require.NoError(t, err)

	reg := cardRegistration()
	reg.Expiry = "13/28"
	_, err = tokenizer.Tokenize(context.Background(), reg)

	assert.Error(t, err)
	assert.False(t, called)
}

func TestNewTranzilaTokenizer_InvalidConfig(t *testing.T) {
	cfg := validTranzilaConfig()
	cfg.Secret = ""

	_, err := NewTranzilaTokenizer(cfg, nil, nil)

	assert.ErrorIs(t, err, ErrTranzilaMissingSecret)
}
