// Package tracing sets up OpenTelemetry spans for envspec. Spans are only
// exported when JAEGER_TRACE is set to the host:port of a jaeger agent.
package tracing

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/maxmcd/envspec/internal/logger"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	service = "envspec"
	EnvVar  = "JAEGER_TRACE"
)

// tracerProvider returns a TracerProvider that batches spans to the jaeger
// agent at hostAndPort.
func tracerProvider(hostAndPort string) (*tracesdk.TracerProvider, error) {
	host, port, err := net.SplitHostPort(hostAndPort)
	if err != nil {
		return nil, errors.Wrapf(err, "%s=%q should be host:port", EnvVar, hostAndPort)
	}
	jaegerBatcher, err := jaeger.New(jaeger.WithAgentEndpoint(
		jaeger.WithAgentHost(host),
		jaeger.WithAgentPort(port),
	))
	if err != nil {
		return nil, err
	}
	return tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(jaegerBatcher),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
			attribute.Int("pid", os.Getpid()),
		)),
	), nil
}

var (
	tp *tracesdk.TracerProvider
)

func init() {
	hostAndPort, found := os.LookupEnv(EnvVar)
	if !found {
		// Never collect traces if we're not gathering them
		tp = tracesdk.NewTracerProvider(tracesdk.WithSampler(tracesdk.NeverSample()))
		return
	}
	var err error
	tp, err = tracerProvider(hostAndPort)
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
		tp = tracesdk.NewTracerProvider(tracesdk.WithSampler(tracesdk.NeverSample()))
		return
	}

	otel.SetTracerProvider(tp)
}

func Tracer(name string) trace.Tracer {
	if tp == nil {
		panic("tracing provider hasn't been initialized")
	}
	return tp.Tracer(name)
}

func Stop() {
	if tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*1)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logger.Print(err)
	}
}
