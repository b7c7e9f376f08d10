package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBus_CollectsVoteFromRespondingSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("Mosquitto")
	defer cancel()

	go func() {
		req := <-ch
		req.Reply <- &DeferComponentUpdate{Component: "Mosquitto", RecheckAfter: 5 * time.Second}
	}()

	votes := bus.PublishAndCollect(context.Background(), PreComponentUpdate{
		DeploymentID: "d1",
		Components:   []string{"Mosquitto"},
	}, time.Second)

	assert.Equal(t, []DeferComponentUpdate{{Component: "Mosquitto", RecheckAfter: 5 * time.Second}}, votes)
}

func TestBus_SilentSubscriberAbstains(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("RedSignal")
	defer cancel()

	go func() { <-ch }() // receives but never replies

	start := time.Now()
	votes := bus.PublishAndCollect(context.Background(), PreComponentUpdate{
		Components: []string{"RedSignal"},
	}, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.Empty(t, votes)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestBus_UnsubscribedComponentIsSkipped(t *testing.T) {
	bus := NewBus()
	votes := bus.PublishAndCollect(context.Background(), PreComponentUpdate{
		Components: []string{"Ghost"},
	}, 50*time.Millisecond)
	assert.Empty(t, votes)
}
