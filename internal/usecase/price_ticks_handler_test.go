package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TokenRank/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePriceWriter struct {
	saved []models.PriceSample
	err   error
}

func (w *fakePriceWriter) SavePrices(_ context.Context, samples []models.PriceSample) error {
	w.saved = append(w.saved, samples...)
	return w.err
}

func TestPriceTicksHandler_SingleTick(t *testing.T) {
	w := &fakePriceWriter{}
	h := NewPriceTicksHandler("token.prices", w, nil)
	assert.Equal(t, "token.prices", h.Topic())

	// 2024-01-01T00:01:30Z in milliseconds
	err := h.Handle(context.Background(), []byte(`{"symbol":" pepe ","t":1704067290000,"c":0.0012}`))
	require.NoError(t, err)
	require.Len(t, w.saved, 1)
	assert.Equal(t, models.PriceSample{
		Symbol: "PEPE",
		Price:  0.0012,
		Minute: time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC),
	}, w.saved[0])
}

func TestPriceTicksHandler_ArrayWithAliases(t *testing.T) {
	w := &fakePriceWriter{}
	h := NewPriceTicksHandler("token.prices", w, nil)

	err := h.Handle(context.Background(), []byte(`[
		{"symbol":"BONK","ts":1704067200,"price":2.5},
		{"symbol":"","ts":1704067200,"price":1},
		{"symbol":"WIF","ts":1704067260,"price":0}
	]`))
	require.NoError(t, err)
	require.Len(t, w.saved, 1)
	assert.Equal(t, "BONK", w.saved[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w.saved[0].Minute)
}

func TestPriceTicksHandler_Errors(t *testing.T) {
	h := NewPriceTicksHandler("token.prices", &fakePriceWriter{}, nil)
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, []byte(`not json`)))
	assert.Error(t, h.Handle(ctx, []byte(``)))
	assert.Error(t, h.Handle(ctx, []byte(`{"symbol":"A","c":1}`)))
	assert.Error(t, h.Handle(ctx, []byte(`[]`)))

	failing := NewPriceTicksHandler("token.prices", &fakePriceWriter{err: errors.New("insert failed")}, nil)
	assert.Error(t, failing.Handle(ctx, []byte(`{"symbol":"A","t":1704067200,"c":1}`)))
}
