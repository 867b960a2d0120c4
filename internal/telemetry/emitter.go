// Package telemetry records operational events to the session store.
package telemetry

import (
	"context"
	"time"

	"github.com/louisbranch/emberwake.world/internal/storage"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter. A nil store yields an
// emitter whose methods are no-ops.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// SetClock overrides the timestamp source.
func (e *Emitter) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.Severity == "" {
		evt.Severity = storage.TelemetrySeverityInfo
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}

// Info records an informational event for a session component.
func (e *Emitter) Info(ctx context.Context, sessionID, component, message string, metadata map[string]string) error {
	return e.Emit(ctx, storage.TelemetryEvent{
		Severity:  storage.TelemetrySeverityInfo,
		SessionID: sessionID,
		Component: component,
		Message:   message,
		Metadata:  metadata,
	})
}

// Warn records a warning event for a session component.
func (e *Emitter) Warn(ctx context.Context, sessionID, component, message string, metadata map[string]string) error {
	return e.Emit(ctx, storage.TelemetryEvent{
		Severity:  storage.TelemetrySeverityWarn,
		SessionID: sessionID,
		Component: component,
		Message:   message,
		Metadata:  metadata,
	})
}

// Error records an error event for a session component.
func (e *Emitter) Error(ctx context.Context, sessionID, component, message string, metadata map[string]string) error {
	return e.Emit(ctx, storage.TelemetryEvent{
		Severity:  storage.TelemetrySeverityError,
		SessionID: sessionID,
		Component: component,
		Message:   message,
		Metadata:  metadata,
	})
}
