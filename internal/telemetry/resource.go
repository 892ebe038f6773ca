package telemetry

import (
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// newResource describes the running service for both traces and metrics.
// DEPLOYMENT_ENV, when set, tags it with the deployment environment.
func newResource(serviceName, serviceVersion string) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		semconv.ServiceNamespace("bakery"),
	}
	if env := os.Getenv("DEPLOYMENT_ENV"); env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(env))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
