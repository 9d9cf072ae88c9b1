package authn

import (
	"context"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

// AuditHook writes one structured log line per attempt.
type AuditHook struct{}

func (AuditHook) PreAuthenticate(ctx context.Context, param domain.RequestParameter) error {
	slogx.FromContext(ctx).Debug("authentication attempt", "param", param)
	return nil
}

func (AuditHook) OnSuccess(ctx context.Context, _ domain.RequestParameter, auth *domain.Authentication) error {
	slogx.FromContext(ctx).Info("authentication succeeded",
		"type", auth.Type,
		"subject", auth.Subject(),
		"client_id", auth.ClientID,
		"authorities", auth.Authorities,
	)
	return nil
}

func (AuditHook) OnFailure(ctx context.Context, param domain.RequestParameter, cause error) error {
	slogx.FromContext(ctx).Warn("authentication failed",
		"type", param.Type(),
		"principal", param.Principal(),
		"client_id", param.ClientID(),
		"kind", domain.KindOf(cause),
	)
	return nil
}

// MetricsHook counts attempts by type and outcome, and failures by kind.
type MetricsHook struct {
	attempts *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetricsHook registers the hook's collectors with reg.
func NewMetricsHook(reg prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iha",
			Name:      "authentications_total",
			Help:      "Authentication attempts by processor type and outcome.",
		}, []string{"type", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iha",
			Name:      "authentication_failures_total",
			Help:      "Failed authentication attempts by error kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{h.attempts, h.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *MetricsHook) OnSuccess(_ context.Context, param domain.RequestParameter, _ *domain.Authentication) error {
	h.attempts.WithLabelValues(param.Type(), "success").Inc()
	return nil
}

func (h *MetricsHook) OnFailure(_ context.Context, param domain.RequestParameter, cause error) error {
	h.attempts.WithLabelValues(param.Type(), "failure").Inc()
	h.failures.WithLabelValues(string(domain.KindOf(cause))).Inc()
	return nil
}
