package database

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bouabca/hawiyat-site-sub000/pkg/database"

// TraceQuery starts a client span for a repository operation. Call the
// returned function with the operation's final error:
//
//	ctx, end := database.TraceQuery(ctx, "users.GetByEmail")
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
