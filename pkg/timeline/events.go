package timeline

import (
	"context"

	"github.com/synaptica-ai/timeline/pkg/common/kafka"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
)

const eventSource = "timeline-service"

// EventPublisher is the part of the kafka producer the notifier needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Notifier announces every load attempt on the event bus.
type Notifier struct {
	publisher EventPublisher
}

func NewNotifier(publisher EventPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func (n *Notifier) ObserveLoad(ctx context.Context, o Outcome) {
	eventType, data := EventFor(o)
	if err := n.publisher.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("run_id", o.RunID).Warn("failed to publish load event")
	}
}

// EventFor maps an outcome to its event type and payload.
func EventFor(o Outcome) (string, map[string]interface{}) {
	data := map[string]interface{}{
		"run_id":      o.RunID,
		"state":       o.State.String(),
		"duration_ms": o.Elapsed.Milliseconds(),
	}
	if o.Err != nil {
		data["error"] = o.Err.Error()
		return kafka.EventTimelineFailed, data
	}
	data["patients"] = o.Patients
	if o.Warning != "" {
		data["medication_warning"] = o.Warning
	}
	return kafka.EventTimelineLoaded, data
}
