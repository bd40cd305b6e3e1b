package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

func TestPublishRequiresClientAndTopic(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Publish(context.Background(), "posts", map[string]string{"post_id": "1"})
	require.Error(t, err)
	require.NoError(t, p.Close())
}

func TestBuildMessageEncodesPayload(t *testing.T) {
	t.Parallel()

	msg, err := buildMessage(context.Background(), map[string]any{"post_id": "20240501083015123", "comment_count": 21})
	require.NoError(t, err)
	require.NotNil(t, msg.Attributes)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "20240501083015123", decoded["post_id"])
	assert.InDelta(t, 21, decoded["comment_count"], 0)

	_, err = buildMessage(context.Background(), make(chan int))
	require.Error(t, err)
}

func TestCarrierRoundTrip(t *testing.T) {
	t.Parallel()

	carrier := &pubsubCarrier{attrs: map[string]string{}}
	propagation.Baggage{}.Inject(context.Background(), carrier)
	carrier.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", carrier.Get("traceparent"))
	assert.ElementsMatch(t, []string{"traceparent"}, carrier.Keys())

	sc := propagation.TraceContext{}.Extract(context.Background(), carrier)
	assert.NotNil(t, sc)
}
