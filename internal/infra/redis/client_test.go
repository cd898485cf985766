package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/softscan/internal/core/domain"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	msgs   []published
	err    error
	closed bool
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.msgs = append(f.msgs, published{channel: channel, payload: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestClient_EmitPublishesJSONOnBatchChannel(t *testing.T) {
	fake := &fakePublisher{}
	c := newClient(fake, "")

	result := domain.ClassificationResult{ItemIndex: 4, Name: "xz-utils", Safety: domain.SafetyHarmful, RCA: "CVE-2024-3094"}
	require.NoError(t, c.Emit(context.Background(), &domain.Event{
		Type: domain.EventTypeResultReady, BatchID: "abc", Result: &result,
	}))

	require.Len(t, fake.msgs, 1)
	assert.Equal(t, "softscan:batch:abc", fake.msgs[0].channel)

	var got domain.Event
	require.NoError(t, json.Unmarshal(fake.msgs[0].payload, &got))
	assert.Equal(t, domain.EventTypeResultReady, got.Type)
	require.NotNil(t, got.Result)
	assert.Equal(t, result, *got.Result)

	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}

func TestClient_EmitWrapsPublishError(t *testing.T) {
	fake := &fakePublisher{err: errors.New("connection refused")}
	c := newClient(fake, "scans")

	err := c.Emit(context.Background(), &domain.Event{Type: domain.EventTypeProgress, BatchID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed")
	assert.Equal(t, "scans:x", c.Channel("x"))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{URL: "not-a-redis-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}
