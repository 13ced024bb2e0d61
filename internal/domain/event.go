package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType names the family an entity belongs to.
type EntityType string

const (
	EntityRestaurant EntityType = "restaurant"
	EntityCategory   EntityType = "category"
	EntityMenuItem   EntityType = "menu_item"
	EntityOrder      EntityType = "order"
)

// EventType is the lifecycle transition an event describes.
type EventType string

const (
	EventCreated       EventType = "CREATED"
	EventUpdated       EventType = "UPDATED"
	EventDeleted       EventType = "DELETED"
	EventStatusUpdated EventType = "STATUS_UPDATED"
)

// TopicEvents carries the events of every entity family. All events of one
// scope share one sequence and one partition key, so a single partition
// holds them in commit order. Consumers tell families apart by Entity.
const TopicEvents = "foodhub.events"

// Topics lists every topic an event can be published on.
func Topics() []string {
	return []string{TopicEvents}
}

// DomainEvent is the immutable notification emitted for every committed
// mutation. Field names are part of the consumer contract.
type DomainEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Entity    EntityType      `json:"entity"`
	EntityID  string          `json:"entityId"`
	ScopeID   string          `json:"scopeId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`

	// StreamMessageID is set by stream readers and never serialized.
	StreamMessageID string `json:"-"`
}

// Topic returns the topic the event is published on.
func (e DomainEvent) Topic() string { return TopicEvents }

// PartitionKey is the routing key that keeps one scope on one partition.
func (e DomainEvent) PartitionKey() string { return e.ScopeID }

// NewEvent builds a DomainEvent, rejecting types and payloads that do not
// belong to the entity family.
func NewEvent(id string, typ EventType, entity EntityType, entityID, scopeID string, sequence int64, payload any, ts time.Time) (DomainEvent, error) {
	if id == "" || entityID == "" || scopeID == "" {
		return DomainEvent{}, fmt.Errorf("%w: id, entityId and scopeId are required", ErrInvalidEvent)
	}
	if sequence <= 0 {
		return DomainEvent{}, fmt.Errorf("%w: sequence must be positive, got %d", ErrInvalidEvent, sequence)
	}
	if !allowedType(entity, typ) {
		return DomainEvent{}, fmt.Errorf("%w: %s is not a %s event", ErrInvalidEvent, typ, entity)
	}
	if !payloadMatches(entity, typ, payload) {
		return DomainEvent{}, fmt.Errorf("%w: payload %T does not belong to %s %s", ErrInvalidEvent, payload, entity, typ)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("%w: marshal payload: %v", ErrInvalidEvent, err)
	}

	return DomainEvent{
		ID:        id,
		Type:      typ,
		Entity:    entity,
		EntityID:  entityID,
		ScopeID:   scopeID,
		Payload:   raw,
		Timestamp: ts.UTC(),
		Sequence:  sequence,
	}, nil
}

func allowedType(entity EntityType, typ EventType) bool {
	switch entity {
	case EntityRestaurant, EntityCategory, EntityMenuItem:
		return typ == EventCreated || typ == EventUpdated || typ == EventDeleted
	case EntityOrder:
		return typ == EventCreated || typ == EventStatusUpdated
	}
	return false
}

func payloadMatches(entity EntityType, typ EventType, payload any) bool {
	switch p := payload.(type) {
	case Restaurant:
		return entity == EntityRestaurant
	case *Restaurant:
		return p != nil && entity == EntityRestaurant
	case Category:
		return entity == EntityCategory
	case *Category:
		return p != nil && entity == EntityCategory
	case MenuItem:
		return entity == EntityMenuItem
	case *MenuItem:
		return p != nil && entity == EntityMenuItem
	case Order:
		return entity == EntityOrder && typ == EventCreated
	case *Order:
		return p != nil && entity == EntityOrder && typ == EventCreated
	case StatusChange:
		return entity == EntityOrder && typ == EventStatusUpdated
	case *StatusChange:
		return p != nil && entity == EntityOrder && typ == EventStatusUpdated
	}
	return false
}
