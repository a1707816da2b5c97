package messaging

import (
	"context"
)

// Subjects of catalog product events.
const (
	ProductsSubjectWildcard    = "catalog.products.>"
	ProductCreatedSubject      = "catalog.products.created"
	ProductPriceChangedSubject = "catalog.products.price_changed"
	ProductDeletedSubject      = "catalog.products.deleted"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
