package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/internal/services/features"
	pkgkafka "TokenRank/pkg/kafka"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/util"
)

// PriceTicksHandler consumes price ticks from Kafka and stores them as
// per-minute samples.
type PriceTicksHandler struct {
	topic  string
	writer domrepo.PriceWriter
	log    *logger.Logger
}

func NewPriceTicksHandler(topic string, writer domrepo.PriceWriter, log *logger.Logger) *PriceTicksHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &PriceTicksHandler{topic: topic, writer: writer, log: log}
}

func (h *PriceTicksHandler) Topic() string { return h.topic }

// priceTick accepts {symbol, t|ts, c|price}; timestamps may be seconds or milliseconds.
type priceTick struct {
	Symbol string   `json:"symbol"`
	T      int64    `json:"t"`
	TS     int64    `json:"ts"`
	C      *float64 `json:"c"`
	Price  *float64 `json:"price"`
}

func (t priceTick) sample() (models.PriceSample, error) {
	sym := features.CanonicalSymbol(t.Symbol)
	if sym == "" {
		return models.PriceSample{}, fmt.Errorf("tick without symbol")
	}
	ts := t.T
	if ts == 0 {
		ts = t.TS
	}
	if ts <= 0 {
		return models.PriceSample{}, fmt.Errorf("tick %s without timestamp", sym)
	}
	price := t.C
	if price == nil {
		price = t.Price
	}
	if price == nil || *price <= 0 {
		return models.PriceSample{}, fmt.Errorf("tick %s without positive price", sym)
	}
	return models.PriceSample{
		Symbol: sym,
		Price:  *price,
		Minute: util.MinuteFloor(util.UnixAuto(ts)),
	}, nil
}

// Handle takes a single tick or an array of ticks. Invalid ticks inside an
// array are dropped; a payload with no valid tick is an error.
func (h *PriceTicksHandler) Handle(ctx context.Context, b []byte) error {
	ticks, err := decodeTicks(b)
	if err != nil {
		return err
	}

	samples := make([]models.PriceSample, 0, len(ticks))
	for _, t := range ticks {
		s, err := t.sample()
		if err != nil {
			h.log.Debug("price tick dropped", logger.Error(err))
			continue
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no valid price ticks in message")
	}

	if err := h.writer.SavePrices(ctx, samples); err != nil {
		return fmt.Errorf("save prices: %w", err)
	}
	return nil
}

func decodeTicks(b []byte) ([]priceTick, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	if b[0] == '[' {
		var ticks []priceTick
		if err := json.Unmarshal(b, &ticks); err != nil {
			return nil, fmt.Errorf("decode ticks: %w", err)
		}
		return ticks, nil
	}
	var t priceTick
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode tick: %w", err)
	}
	return []priceTick{t}, nil
}

var _ pkgkafka.MessageHandler = (*PriceTicksHandler)(nil)
