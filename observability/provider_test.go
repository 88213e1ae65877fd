package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(&Config{})
	require.NoError(t, err)

	assert.IsType(t, &noopProvider{}, p)
	assert.IsType(t, tracenoop.NewTracerProvider(), p.TracerProvider())
	assert.IsType(t, noop.NewMeterProvider(), p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, Shutdown(p, 0))
}

func TestNewProviderNilConfig(t *testing.T) {
	_, err := NewProvider(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProviderExportsToWriter(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer

	p, err := NewProvider(&Config{Enabled: true, ServiceName: "fetch-test", Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "GET")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("http.client.retries")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, Shutdown(p, 0))

	out := buf.String()
	assert.Contains(t, out, `"Name":"GET"`)
	assert.Contains(t, out, "fetch-test")
	assert.Contains(t, out, "http.client.retries")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, DefaultMetricsInterval, cfg.MetricsInterval)
	assert.NotNil(t, cfg.Writer)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "disabled skips checks", cfg: Config{Protocol: "udp"}},
		{name: "stdout", cfg: Config{Enabled: true, ServiceName: "svc", Endpoint: EndpointStdout}},
		{name: "missing service name", cfg: Config{Enabled: true}, wantErr: ErrMissingServiceName},
		{
			name: "http collector",
			cfg:  Config{Enabled: true, ServiceName: "svc", Endpoint: "http://localhost:4318", Protocol: ProtocolHTTP},
		},
		{
			name:    "http collector without scheme",
			cfg:     Config{Enabled: true, ServiceName: "svc", Endpoint: "localhost:4318", Protocol: ProtocolHTTP},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "grpc collector",
			cfg:  Config{Enabled: true, ServiceName: "svc", Endpoint: "localhost:4317", Protocol: ProtocolGRPC},
		},
		{
			name:    "grpc collector with scheme",
			cfg:     Config{Enabled: true, ServiceName: "svc", Endpoint: "http://localhost:4317", Protocol: ProtocolGRPC},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name:    "unknown protocol",
			cfg:     Config{Enabled: true, ServiceName: "svc", Endpoint: "localhost:4317", Protocol: "udp"},
			wantErr: ErrInvalidProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewProviderRejectsInvalidEndpoint(t *testing.T) {
	_, err := NewProvider(&Config{Enabled: true, Endpoint: "collector:4318"})
	assert.ErrorIs(t, err, ErrInvalidEndpointFormat)
}

func TestNewProviderOTLP(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "http",
			cfg: Config{
				Enabled:  true,
				Endpoint: "http://127.0.0.1:1",
				Insecure: true,
				Headers:  map[string]string{"Authorization": "Bearer token"},
			},
		},
		{
			name: "grpc",
			cfg: Config{
				Enabled:  true,
				Endpoint: "127.0.0.1:1",
				Protocol: ProtocolGRPC,
				Insecure: true,
				Headers:  map[string]string{"Authorization": "Bearer token"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobals(t)

			p, err := NewProvider(&tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, &provider{}, p)
			assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())

			// nothing listens on the collector port; only the lifecycle is exercised
			_ = Shutdown(p, 100*time.Millisecond)
		})
	}
}
