package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

func ledgerEvent(t model.EventType) model.Event {
	return model.Event{Topic: model.TopicLedger, Type: t}
}

func TestPublish_DeliversInSubscriptionOrder(t *testing.T) {
	b := New(zap.NewNop())

	var got []string
	b.Subscribe(model.TopicLedger, func(model.Event) { got = append(got, "first") })
	b.Subscribe(model.TopicLedger, func(model.Event) { got = append(got, "second") })

	b.Publish(ledgerEvent(model.EventUserLogin))

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestPublish_SetsOccurredAt(t *testing.T) {
	b := New(zap.NewNop())

	var got model.Event
	b.Subscribe(model.TopicLedger, func(ev model.Event) { got = ev })
	b.Publish(ledgerEvent(model.EventUserLogout))

	assert.False(t, got.OccurredAt.IsZero())
	assert.Equal(t, model.EventUserLogout, got.Type)
}

func TestPublish_TopicsAreIsolated(t *testing.T) {
	b := New(zap.NewNop())

	ledger, ambient := 0, 0
	b.Subscribe(model.TopicLedger, func(model.Event) { ledger++ })
	b.Subscribe(model.TopicAmbient, func(model.Event) { ambient++ })

	b.Publish(model.Event{Topic: model.TopicAmbient, Type: model.EventGlobalBroadcast})

	assert.Equal(t, 0, ledger)
	assert.Equal(t, 1, ambient)
}

func TestUnsubscribe(t *testing.T) {
	b := New(zap.NewNop())

	calls := 0
	unsubscribe := b.Subscribe(model.TopicLedger, func(model.Event) { calls++ })
	require.Equal(t, 1, b.Subscribers(model.TopicLedger))

	unsubscribe()
	unsubscribe()

	b.Publish(ledgerEvent(model.EventUserLogin))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, b.Subscribers(model.TopicLedger))
}

func TestPublish_ListenerMayReenterBus(t *testing.T) {
	b := New(zap.NewNop())

	var unsubscribe func()
	nested := 0
	unsubscribe = b.Subscribe(model.TopicLedger, func(ev model.Event) {
		unsubscribe()
		b.Subscribe(model.TopicLedger, func(model.Event) { nested++ })
		b.Publish(model.Event{Topic: model.TopicAmbient, Type: model.EventGlobalBroadcast})
	})

	b.Publish(ledgerEvent(model.EventTransactionCreated))
	assert.Equal(t, 0, nested, "listener added during delivery must not receive the current event")

	b.Publish(ledgerEvent(model.EventTransactionCreated))
	assert.Equal(t, 1, nested)
}

func TestPublish_RecoversPanickingListener(t *testing.T) {
	b := New(zap.NewNop())

	delivered := false
	b.Subscribe(model.TopicLedger, func(model.Event) { panic("boom") })
	b.Subscribe(model.TopicLedger, func(model.Event) { delivered = true })

	assert.NotPanics(t, func() { b.Publish(ledgerEvent(model.EventUserLogin)) })
	assert.True(t, delivered)
}

func TestClose(t *testing.T) {
	b := New(zap.NewNop())

	calls := 0
	b.Subscribe(model.TopicLedger, func(model.Event) { calls++ })
	b.Close()

	b.Publish(ledgerEvent(model.EventUserLogin))
	b.Subscribe(model.TopicLedger, func(model.Event) { calls++ })
	b.Publish(ledgerEvent(model.EventUserLogin))

	assert.Equal(t, 0, calls)
}

func TestPublish_Concurrent(t *testing.T) {
	b := New(zap.NewNop())

	var mu sync.Mutex
	count := 0
	b.Subscribe(model.TopicLedger, func(model.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(ledgerEvent(model.EventTransactionUpdated))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
