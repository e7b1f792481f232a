package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	pkgkafka "TokenRank/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	topic string
	msgs  []pkgkafka.Message
	err   error
}

func (c *capturePublisher) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	c.topic = topic
	c.msgs = append(c.msgs, msgs...)
	return c.err
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, []models.PredictionRecord) error { return f.err }

func TestKafkaResultPublisher(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewKafkaResultPublisher(pub, "prediction.results")

	err := sink.Write(context.Background(), []models.PredictionRecord{
		{RoundID: "r1", Symbol: "A", Rank: 1},
		{RoundID: "r1", Symbol: "B", Rank: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "prediction.results", pub.topic)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "r1", pub.msgs[0].Key)
	assert.Equal(t, "B", pub.msgs[1].Value.(map[string]interface{})["symbol"])

	require.NoError(t, sink.Write(context.Background(), nil))
	assert.Len(t, pub.msgs, 2)
}

func TestMultiSink(t *testing.T) {
	pub := &capturePublisher{}
	boom := errors.New("boom")
	sink := MultiSink{failingSink{err: boom}, NewKafkaResultPublisher(pub, "t"), NopSink{}}

	err := sink.Write(context.Background(), []models.PredictionRecord{{RoundID: "r1", Symbol: "A"}})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, pub.msgs, 1, "later sinks still receive records")

	assert.NoError(t, MultiSink{NopSink{}}.Write(context.Background(), nil))
}

func TestMemoryPriceStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryPriceStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.SavePrices(ctx, []models.PriceSample{
		{Symbol: "A", Minute: base.Add(2 * time.Minute), Price: 3},
		{Symbol: "A", Minute: base, Price: 1},
		{Symbol: "A", Minute: base.Add(time.Minute + 20*time.Second), Price: 2},
		{Symbol: "A", Minute: base.Add(2 * time.Minute), Price: 4},
	}))

	asc, err := m.Range(ctx, "A", base, base.Add(2*time.Minute), domrepo.Ascending)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, []float64{1, 2, 4}, []float64{asc[0].Price, asc[1].Price, asc[2].Price})

	desc, err := m.Range(ctx, "A", base.Add(time.Minute), base.Add(time.Hour), domrepo.Descending)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, 4.0, desc[0].Price)

	p, ok, err := m.LatestAt(ctx, "A", base.Add(90*time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Price)

	_, ok, err = m.LatestAt(ctx, "A", base.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = m.LatestAt(ctx, "B", base)
	assert.False(t, ok)
}
