package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{"id": 1, "amount": "100.00"}

	before := time.Now()
	evt := NewEvent(EventTypePaid, EntityTypeFee, payload)
	after := time.Now()

	assert.Equal(t, "fee.paid", evt.Type)
	assert.Equal(t, EntityTypeFee, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_ToJSON(t *testing.T) {
	evt := NewEvent(EventTypeGenerated, EntityTypeClosing, map[string]interface{}{"id": float64(42)})

	data, err := evt.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "closing.generated", decoded["type"])
	assert.Equal(t, "closing", decoded["entity"])
	assert.NotNil(t, decoded["payload"])
	assert.NotNil(t, decoded["timestamp"])
}

func TestLedgerEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"id": float64(1)}

	tests := []struct {
		name     string
		evt      Event
		wantType string
		entity   EntityType
	}{
		{"FeesGenerated", FeesGenerated(payload), "fee.generated", EntityTypeFee},
		{"FeePaid", FeePaid(payload), "fee.paid", EntityTypeFee},
		{"ExpenseCreated", ExpenseCreated(payload), "expense.created", EntityTypeExpense},
		{"ExpenseUpdated", ExpenseUpdated(payload), "expense.updated", EntityTypeExpense},
		{"ExpenseDeleted", ExpenseDeleted(payload), "expense.deleted", EntityTypeExpense},
		{"FundTransferred", FundTransferred(payload), "fund.transfer", EntityTypeFund},
		{"ClosingGenerated", ClosingGenerated(payload), "closing.generated", EntityTypeClosing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.evt.Type)
			assert.Equal(t, tt.entity, tt.evt.Entity)
			assert.Equal(t, payload, tt.evt.Payload)
		})
	}
}
