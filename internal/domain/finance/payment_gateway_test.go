package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChargeOutcome(t *testing.T) {
	tests := []struct {
		outcome ChargeOutcome
		valid   bool
		final   bool
	}{
		{ChargeOutcomeSuccess, true, true},
		{ChargeOutcomePending, true, true},
		{ChargeOutcomeDecline, true, false},
		{ChargeOutcome("refunded"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.outcome.IsValid())
			assert.Equal(t, tt.final, tt.outcome.IsFinal())
		})
	}
}
