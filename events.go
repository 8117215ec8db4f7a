package cask

import "time"

// EventKind identifies a lifecycle milestone.
type EventKind string

const (
	// EventDefinitionRegistered fires when a definition enters the registry.
	EventDefinitionRegistered EventKind = "definition_registered"
	// EventInstanceCreated fires after an instance is built and initialized.
	EventInstanceCreated EventKind = "instance_created"
	// EventStateChanged fires on container state transitions.
	EventStateChanged EventKind = "state_changed"
)

// Event describes one lifecycle milestone.
type Event struct {
	Kind       EventKind
	Definition string
	State      ContainerState
	At         time.Time
}

// EventSink receives lifecycle events. Delivery is fire-and-forget on a
// separate goroutine; a sink can never block or fail a resolution.
type EventSink func(Event)

func (c *Container) emit(ev Event) {
	sink := c.sink
	if sink == nil {
		return
	}
	ev.At = time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Warn("event sink panicked")
			}
		}()
		sink(ev)
	}()
}
