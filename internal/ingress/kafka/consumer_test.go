package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payengine/internal/ingress"
	"github.com/nkiryanov/payengine/internal/models"
)

func TestConsumerNext(t *testing.T) {
	mc := mocks.NewConsumer(t, nil)
	pc := mc.ExpectConsumePartition("transactions", 0, sarama.OffsetOldest)
	pc.YieldMessage(&sarama.ConsumerMessage{Value: []byte("deposit,1,1,1.5")})
	pc.YieldMessage(&sarama.ConsumerMessage{Value: []byte("dispute,1,1")})
	pc.YieldMessage(&sarama.ConsumerMessage{Value: []byte("teleport,1,2,9.9")})

	consumer, err := newFromConsumer(mc, "transactions", 0)
	require.NoError(t, err)
	defer consumer.Close() // nolint:errcheck

	ctx := context.Background()

	tx, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, models.TransactionDeposit, tx.Kind)
	require.Equal(t, uint16(1), tx.ClientID)
	require.Equal(t, int64(15_000), tx.Amount.Raw())

	tx, err = consumer.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, models.TransactionDispute, tx.Kind)

	_, err = consumer.Next(ctx)
	var recordErr *ingress.RecordError
	require.ErrorAs(t, err, &recordErr, "a malformed message should not kill the stream")
	require.Equal(t, 3, recordErr.Line)
}

func TestConsumerNextCancelledContext(t *testing.T) {
	mc := mocks.NewConsumer(t, nil)
	mc.ExpectConsumePartition("transactions", 0, sarama.OffsetOldest)

	consumer, err := newFromConsumer(mc, "transactions", 0)
	require.NoError(t, err)
	defer consumer.Close() // nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = consumer.Next(ctx)

	require.ErrorIs(t, err, context.Canceled)
}
