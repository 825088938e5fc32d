package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"registration-service/internal/event"
	"registration-service/internal/kafka"
	"registration-service/internal/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer(t *testing.T) {
	ctx := context.Background()

	t.Run("Publish", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, kafka.NewConfig())
		sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var got event.ApplicationSubmitted
			if err := json.Unmarshal(val, &got); err != nil {
				return err
			}
			if got.ApplicationID != 42 {
				return errors.New("unexpected application id")
			}
			return nil
		})

		p := kafka.NewProducerWith(sp, "applications", logger.Discard(), nil)
		e := event.ApplicationSubmitted{Type: event.TypeApplicationSubmitted, ApplicationID: 42, USN: "1RV21CS001"}
		require.NoError(t, p.Publish(ctx, e.Key(), e))
		require.NoError(t, p.Close())
	})

	t.Run("PublishFails", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, kafka.NewConfig())
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		p := kafka.NewProducerWith(sp, "applications", logger.Discard(), nil)
		err := p.Publish(ctx, "application-1", map[string]int{"id": 1})
		assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
		require.NoError(t, p.Close())
	})
}
