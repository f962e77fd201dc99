package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	batches  [][]string
	messages []*messaging.MulticastMessage
	err      error
}

func (f *fakeSender) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, msg.Tokens)
	f.messages = append(f.messages, msg)
	return &messaging.BatchResponse{SuccessCount: len(msg.Tokens)}, nil
}

func TestChunkTokens(t *testing.T) {
	tokens := make([]string, 1001)
	for i := range tokens {
		tokens[i] = "t"
	}

	chunks := chunkTokens(tokens, fcmBatchLimit)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 1)

	assert.Empty(t, chunkTokens(nil, fcmBatchLimit))
}

func TestSendMulticast_Batches(t *testing.T) {
	s := &fakeSender{}
	c := newClient(s, nil, zerolog.Nop())

	tokens := make([]string, 750)
	for i := range tokens {
		tokens[i] = "t"
	}

	require.NoError(t, c.SendMulticast(context.Background(), tokens, "title", "body", nil))
	require.Len(t, s.batches, 2)
	assert.Len(t, s.batches[0], 500)
	assert.Len(t, s.batches[1], 250)
}

func TestSendMulticast_NoTokens(t *testing.T) {
	s := &fakeSender{}
	c := newClient(s, nil, zerolog.Nop())

	require.NoError(t, c.SendMulticast(context.Background(), nil, "title", "body", nil))
	assert.Empty(t, s.batches)
}

func TestSendMulticast_Error(t *testing.T) {
	c := newClient(&fakeSender{err: errors.New("quota")}, nil, zerolog.Nop())

	err := c.SendMulticast(context.Background(), []string{"t"}, "title", "body", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestSendMulticast_CollapseKey(t *testing.T) {
	s := &fakeSender{}
	c := newClient(s, nil, zerolog.Nop())

	data := map[string]string{"type": "sync_complete", "itemId": "item-1"}
	require.NoError(t, c.SendMulticast(context.Background(), []string{"a"}, "title", "body", data))
	require.NoError(t, c.SendMulticast(context.Background(), []string{"b"}, "title", "body", nil))

	require.Len(t, s.messages, 2)
	require.NotNil(t, s.messages[0].Android)
	assert.Equal(t, "sync_complete", s.messages[0].Android.CollapseKey)
	assert.Equal(t, "sync_complete", s.messages[0].APNS.Headers["apns-collapse-id"])
	assert.Nil(t, s.messages[1].Android)
	assert.Nil(t, s.messages[1].APNS)
}

type failingSender struct{}

func (failingSender) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	resp := &messaging.BatchResponse{}
	for range msg.Tokens {
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: errors.New("transient")})
		resp.FailureCount++
	}
	return resp, nil
}

func TestSendMulticast_TransientFailuresKeepTokens(t *testing.T) {
	var deactivated []string
	c := newClient(failingSender{}, func(ctx context.Context, token string) error {
		deactivated = append(deactivated, token)
		return nil
	}, zerolog.Nop())

	require.NoError(t, c.SendMulticast(context.Background(), []string{"a", "b"}, "t", "b", nil))
	assert.Empty(t, deactivated)
}
