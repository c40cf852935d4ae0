package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_KeysAndEncodes(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, log: zap.NewNop()}

	err := p.Publish(context.Background(), New(TypeOrderPlaced, 42, map[string]any{"total": 12.5}))
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, "type", w.msgs[0].Headers[0].Key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, TypeOrderPlaced, got["type"])
	assert.Equal(t, 12.5, got["payload"].(map[string]any)["total"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, log: zap.NewNop()}
	err := p.Publish(context.Background(), New(TypePaymentStatusChanged, 1, nil))
	assert.ErrorContains(t, err, "broker down")
}

func TestNewPublisher_NoBrokers(t *testing.T) {
	p := NewPublisher(nil, "t", nil)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), New(TypeOrderPlaced, 1, nil)))
}
