package telemetry

import (
	"context"

	"crm-auth-service/internal/telemetry/domain"
)

// EventEmitter emits auth flow events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuthEvent) error
}
