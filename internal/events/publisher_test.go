package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type capturePublisher struct {
	events []StockEvent
}

func (c *capturePublisher) PublishStockEvent(ev StockEvent) {
	c.events = append(c.events, ev)
}

func TestPublishUsesActivePublisher(t *testing.T) {
	defer Init(NopPublisher{})

	capture := &capturePublisher{}
	Init(capture)

	ev := StockEvent{
		BranchID:  2,
		ProductID: 7,
		Kind:      "exit",
		Quantity:  -3,
		NewStock:  12,
		At:        time.Now(),
	}
	Publish(ev)

	assert.Len(t, capture.events, 1)
	assert.Equal(t, ev, capture.events[0])
}

func TestInitIgnoresNil(t *testing.T) {
	defer Init(NopPublisher{})

	capture := &capturePublisher{}
	Init(capture)
	Init(nil) // nil aktif publisher'ı ezmez

	Publish(StockEvent{BranchID: 1})
	assert.Len(t, capture.events, 1)
}
