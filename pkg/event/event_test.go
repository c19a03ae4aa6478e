package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFireRunsListenersInOrder(t *testing.T) {
	b := New()
	var got []string
	b.Listen("order.confirmed", func(_ context.Context, p interface{}) { got = append(got, "a:"+p.(string)) })
	b.Listen("order.confirmed", func(_ context.Context, p interface{}) { got = append(got, "b:"+p.(string)) })
	b.Listen("other", func(context.Context, interface{}) { got = append(got, "other") })

	b.Fire(context.Background(), "order.confirmed", "ORD-1")
	assert.Equal(t, []string{"a:ORD-1", "b:ORD-1"}, got)
}

func TestPanickingListenerIsContained(t *testing.T) {
	b := New()
	ran := false
	b.Listen("x", func(context.Context, interface{}) { panic("boom") })
	b.Listen("x", func(context.Context, interface{}) { ran = true })

	assert.NotPanics(t, func() { b.Fire(context.Background(), "x", nil) })
	assert.True(t, ran)
}

func TestNilBus(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Fire(context.Background(), "x", nil) })
}
