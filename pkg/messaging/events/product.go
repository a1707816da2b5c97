// Package events defines the payloads published when the catalog changes.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/gocommerce-catalog/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
)

type ProductCreatedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	ProductID uuid.UUID              `json:"product_id"`
	Name      string                 `json:"name"`
	Price     decimal.Decimal        `json:"price"`
	Version   int32                  `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
}

func (e ProductCreatedEvent) Subject() string {
	return messaging.ProductCreatedSubject
}

func (e ProductCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductPriceChangedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	ProductID uuid.UUID              `json:"product_id"`
	OldPrice  decimal.Decimal        `json:"old_price"`
	NewPrice  decimal.Decimal        `json:"new_price"`
	Version   int32                  `json:"version"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (e ProductPriceChangedEvent) Subject() string {
	return messaging.ProductPriceChangedSubject
}

func (e ProductPriceChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductDeletedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	ProductID uuid.UUID              `json:"product_id"`
	DeletedAt time.Time              `json:"deleted_at"`
}

func (e ProductDeletedEvent) Subject() string {
	return messaging.ProductDeletedSubject
}

func (e ProductDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
