package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/domain/model"
)

func TestEmit_WrapsPayload(t *testing.T) {
	rec := &Recorder{}

	Emit(context.Background(), rec, TypeOrderStatusChanged, "order-1", OrderStatusChanged{
		OrderID: "order-1",
		From:    model.OrderPending,
		To:      model.OrderProcessing,
	})

	envs := rec.OfType(TypeOrderStatusChanged)
	require.Len(t, envs, 1)
	assert.Equal(t, "order-1", envs[0].Key)
	assert.NotEmpty(t, envs[0].ID)
	assert.False(t, envs[0].OccurredAt.IsZero())

	var payload OrderStatusChanged
	require.NoError(t, json.Unmarshal(envs[0].Data, &payload))
	assert.Equal(t, model.OrderProcessing, payload.To)
}

func TestEmit_PublishFailureIsSwallowed(t *testing.T) {
	rec := &Recorder{Err: errors.New("broker down")}

	assert.NotPanics(t, func() {
		Emit(context.Background(), rec, TypeOrderPlaced, "order-2", OrderPlaced{OrderID: "order-2"})
	})
	assert.Empty(t, rec.Envelopes())
}

func TestEmit_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, TypeOrderPlaced, "k", nil)
	})
}
