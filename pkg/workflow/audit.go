package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

const auditTimeout = 5 * time.Second

// AuditSubscriber returns an event subscriber that appends every delivered
// event to the audit table. Write failures are logged and dropped.
func AuditSubscriber(store stores.Store, logger zerolog.Logger) telemetry.EventSubscriber {
	logger = logger.With().Str("component", "audit").Logger()

	return func(event telemetry.Event) {
		entry := auditEntryOf(event)

		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()

		err := store.WithTx(ctx, func(tx stores.Tx) error {
			return tx.AppendAudit(ctx, entry)
		})
		if err != nil {
			logger.Warn().Err(err).Str("event", event.Type).Str("event_id", event.ID).Msg("Failed to write audit entry")
		}
	}
}

func auditEntryOf(event telemetry.Event) *model.AuditEntry {
	actor := event.Actor
	if actor == "" {
		actor = event.Source
	}

	entry := &model.AuditEntry{
		Action:    event.Type,
		Actor:     actor,
		Timestamp: event.Timestamp,
	}
	if event.Target != "" {
		target := event.Target
		entry.TargetID = &target
	}

	details := map[string]interface{}{"message": event.Message}
	if event.RunID != "" {
		details["run_id"] = event.RunID
	}
	for k, v := range event.Data {
		details[k] = v
	}
	if raw, err := json.Marshal(details); err == nil {
		s := string(raw)
		entry.Details = &s
	}
	return entry
}
