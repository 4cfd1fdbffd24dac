package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/publisher/memory"
)

func TestPublisherRecordsNotifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pub := memory.New()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := pub.Publish(ctx, "checkpoints", checkpoint.Notification{
		RunID: "run-1", Stage: "links", Object: "article_list.json", Records: 10,
		Reason: checkpoint.ReasonPeriodic, At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, "checkpoints-1", id)
	_, err = pub.Publish(ctx, "checkpoints", checkpoint.Notification{Stage: "content", Records: 4, Reason: checkpoint.ReasonFinal})
	require.NoError(t, err)
	_, err = pub.Publish(ctx, "checkpoints", checkpoint.Notification{Stage: "links", Records: 12, Reason: checkpoint.ReasonFinal})
	require.NoError(t, err)

	links := pub.Notifications("links")
	require.Len(t, links, 2)
	assert.Equal(t, "run-1", links[0].RunID)
	assert.Equal(t, at, links[0].At)
	assert.Len(t, pub.Notifications(""), 3)

	latest, ok := pub.Latest("links")
	require.True(t, ok)
	assert.Equal(t, 12, latest.Records)
	assert.Equal(t, checkpoint.ReasonFinal, latest.Reason)
	_, ok = pub.Latest("compile")
	assert.False(t, ok)

	msgs := pub.Messages()
	assert.JSONEq(t,
		`{"run_id":"run-1","stage":"links","object":"article_list.json","uri":"","records":10,"reason":"periodic","at":"2024-03-01T12:00:00Z"}`,
		string(msgs[0].Data))
	msgs[0].Topic = "modified"
	assert.Equal(t, "checkpoints", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUndecodablePayloads(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	_, err := pub.Publish(context.Background(), "checkpoints", make(chan int))
	require.ErrorContains(t, err, "marshal notification")
	_, err = pub.Publish(context.Background(), "checkpoints", "not an object")
	require.ErrorContains(t, err, "decode notification")
	assert.Empty(t, pub.Messages())
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	pub.FailWith(errors.New("topic not found"))
	_, err := pub.Publish(context.Background(), "checkpoints", checkpoint.Notification{Stage: "links"})
	require.ErrorContains(t, err, "topic not found")

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "checkpoints", checkpoint.Notification{Stage: "links"})
	require.NoError(t, err)
	assert.Len(t, pub.Messages(), 1)
}
