package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader returns msgs in order, then blocks until ctx is cancelled.
type scriptedReader struct {
	msgs   []kafka.Message
	errs   []error
	i      int
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m, err := r.msgs[r.i], r.errs[r.i]
		r.i++
		return m, err
	}
	r.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error { return nil }

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{
		msgs: []kafka.Message{
			{Value: []byte(`{"type":"user.created","user_id":1,"status":1}`)},
			{},
			{Value: []byte(`not json`)},
			{Value: []byte(`{"type":"user.deleted","user_id":2,"status":2,"deleted":true}`)},
			{Value: []byte(`{"type":"user.updated","user_id":3}`)},
		},
		errs:   []error{nil, errors.New("broker hiccup"), nil, nil, nil},
		cancel: cancel,
	}

	var got []Event
	err := newConsumer(r, nil).Run(ctx, func(ctx context.Context, e Event) error {
		got = append(got, e)
		if e.UserID == 3 {
			return errors.New("handler failure is skipped")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, TypeCreated, got[0].Type)
	assert.Equal(t, TypeDeleted, got[1].Type)
	assert.True(t, got[1].Deleted)
	assert.Equal(t, int64(3), got[2].UserID)
}

func TestNewConsumer_DisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewConsumer(nil, "user-events", "g", nil))
	assert.Nil(t, NewConsumer([]string{"localhost:9092"}, "", "g", nil))
}
