// Package poller empties a session's local cart once its order completes.
package poller

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fjod/go_storefront/internal/cart"
)

const Topic = "orders-completed"

// readRetryDelay throttles the consume loop after a failed read so a
// closed or unreachable reader does not spin. Variable for tests.
var readRetryDelay = time.Second

type Poller struct {
	manager *cart.Manager
	reader  *kafka.Reader
}

func NewPoller(manager *cart.Manager, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  "storefront-cart-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{manager: manager, reader: reader}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.consumeAndClearCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		log.Printf("error closing reader: %v", err)
	}
}

func (p *Poller) consumeAndClearCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		log.Printf("error reading message: %v", err)
		if ctx.Err() == nil {
			time.Sleep(readRetryDelay)
		}
		return
	}

	var payload map[string]interface{}
	if errUnmarshal := json.Unmarshal(m.Value, &payload); errUnmarshal != nil {
		log.Printf("error parsing message: %v", errUnmarshal)
		return
	}
	sessionID, ok := payload["session_id"].(string)
	if !ok || sessionID == "" {
		log.Println("missing or invalid session_id")
		return
	}

	if errClear := p.manager.ClearSession(ctx, sessionID); errClear != nil {
		log.Printf("failed to clear cart for session %s: %v", sessionID, errClear)
	}
}
