package instrumented

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/broker-core/internal/metrics"
)

// StoreMetrics counts finished ServiceStore calls.
func StoreMetrics(m *metrics.Metrics) Hook {
	return func(_ context.Context, call Call) {
		if call.Phase == After {
			m.ObserveStoreCall(call.Method, call.Err)
		}
	}
}

// BrokerMetrics counts finished broker calls and records their latency.
func BrokerMetrics(m *metrics.Metrics) Hook {
	return func(_ context.Context, call Call) {
		if call.Phase == After {
			m.ObserveBrokerCall(call.Method, call.Err, call.Duration)
		}
	}
}

// DebugLog logs every finished call at debug level.
func DebugLog(logger *slog.Logger, component string) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, call Call) {
		if call.Phase != After {
			return
		}
		attrs := []any{
			"component", component,
			"method", call.Method,
			"service_id", call.ServiceID,
			"duration", call.Duration,
		}
		if call.Err != nil {
			attrs = append(attrs, "error", call.Err)
		}
		logger.DebugContext(ctx, "call", attrs...)
	}
}
