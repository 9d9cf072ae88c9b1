package authn_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsHook(t *testing.T) {
	m, pipeline := newManager(t)

	reg := prometheus.NewRegistry()
	hook, err := authn.NewMetricsHook(reg)
	require.NoError(t, err)
	require.NoError(t, pipeline.Register(hook))

	ctx := context.Background()
	_, _, err = m.Authenticate(ctx, usernameParam("admin", adminPassword))
	require.NoError(t, err)
	_, _, err = m.Authenticate(ctx, usernameParam("admin", "wrong"))
	require.Error(t, err)
	_, _, err = m.Authenticate(ctx, usernameParam("disabled", adminPassword))
	require.Error(t, err)

	want := `
# HELP iha_authentication_failures_total Failed authentication attempts by error kind.
# TYPE iha_authentication_failures_total counter
iha_authentication_failures_total{kind="bad_credentials"} 1
iha_authentication_failures_total{kind="disabled"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(want), "iha_authentication_failures_total"))

	series, err := testutil.GatherAndCount(reg, "iha_authentications_total")
	require.NoError(t, err)
	require.Equal(t, 2, series)

	_, err = authn.NewMetricsHook(reg)
	require.Error(t, err, "collectors are registered once")
}

func TestAuditHook(t *testing.T) {
	m, pipeline := newManager(t)
	require.NoError(t, pipeline.Register(authn.AuditHook{}))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := slogx.WithContext(context.Background(), logger)

	_, _, err := m.Authenticate(ctx, usernameParam("admin", adminPassword))
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"msg":"authentication succeeded"`)
	require.Contains(t, buf.String(), `"subject":"123"`)
	require.NotContains(t, buf.String(), adminPassword)

	buf.Reset()
	_, _, err = m.Authenticate(ctx, usernameParam("admin", "wrong"))
	require.ErrorIs(t, err, domain.ErrBadCredentials)
	require.Contains(t, buf.String(), `"msg":"authentication failed"`)
	require.Contains(t, buf.String(), `"kind":"bad_credentials"`)
}
