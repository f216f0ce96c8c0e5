package events

import (
	"context"
	"log"
)

// Publisher delivers an envelope keyed by the order id.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	return nil
}

// FanoutPublisher forwards to a primary publisher and then to any secondary
// ones. Secondary failures are logged, not returned: the durable path decides
// success.
type FanoutPublisher struct {
	primary   Publisher
	secondary []Publisher
	logf      func(format string, args ...any)
}

// NewFanoutPublisher constructs a fanout over a primary and secondaries.
func NewFanoutPublisher(primary Publisher, logf func(format string, args ...any), secondary ...Publisher) *FanoutPublisher {
	if logf == nil {
		logf = log.Printf
	}
	return &FanoutPublisher{primary: primary, secondary: secondary, logf: logf}
}

func (p *FanoutPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	if err := p.primary.Publish(ctx, key, env); err != nil {
		return err
	}
	for _, s := range p.secondary {
		if err := s.Publish(ctx, key, env); err != nil {
			p.logf("secondary publish %s: %v", env.EventType, err)
		}
	}
	return nil
}
