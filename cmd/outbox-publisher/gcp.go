package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicResolver hands out a publisher per topic name; nil means unknown topic.
type topicResolver func(topic string) topicPublisher

type publisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// gcpTopics caches one publisher per topic so batching settings are shared.
func gcpTopics(src publisherSource) topicResolver {
	cache := map[string]topicPublisher{}
	return func(topic string) topicPublisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		p := src.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		pub := gcpPublisher{p}
		cache[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{g.p.Publish(ctx, msg)}
}

type gcpResult struct {
	r *gcppubsub.PublishResult
}

func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errors.New("publish result is nil")
	}
	return g.r.Get(ctx)
}
