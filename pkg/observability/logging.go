package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
)

// LogSubscriber logs every published record at Info.
func LogSubscriber(logger *slog.Logger) broker.Subscriber {
	return func(rec domain.CommandRecord) {
		logger.Info("record",
			"id", rec.ID,
			"kind", string(rec.Kind),
			"text", rec.Text,
		)
	}
}

// LogHooks logs action boundaries: starts at Debug, failures at Error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActionStart: func(ctx context.Context, ev *domain.ActionEvent) {
			logger.DebugContext(ctx, "action start",
				"run_id", ev.RunID,
				"position", ev.Position,
				"kind", ev.Kind,
				"pipette", ev.Pipette,
			)
		},
		OnActionEnd: func(ctx context.Context, ev *domain.ActionEvent) {
			if ev.Err != nil {
				logger.ErrorContext(ctx, "action failed",
					"run_id", ev.RunID,
					"position", ev.Position,
					"kind", ev.Kind,
					"error_kind", domain.ErrorKind(ev.Err),
					"error", ev.Err,
				)
				return
			}
			logger.DebugContext(ctx, "action end",
				"run_id", ev.RunID,
				"position", ev.Position,
				"kind", ev.Kind,
				"duration", ev.Duration,
			)
		},
	}
}

// CombineHooks calls every non-nil hook in order.
func CombineHooks(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var starts, ends []func(context.Context, *domain.ActionEvent)
	for _, h := range hooks {
		if h.OnActionStart != nil {
			starts = append(starts, h.OnActionStart)
		}
		if h.OnActionEnd != nil {
			ends = append(ends, h.OnActionEnd)
		}
	}
	var out domain.LifecycleHooks
	if len(starts) > 0 {
		out.OnActionStart = func(ctx context.Context, ev *domain.ActionEvent) {
			for _, fn := range starts {
				fn(ctx, ev)
			}
		}
	}
	if len(ends) > 0 {
		out.OnActionEnd = func(ctx context.Context, ev *domain.ActionEvent) {
			for _, fn := range ends {
				fn(ctx, ev)
			}
		}
	}
	return out
}
