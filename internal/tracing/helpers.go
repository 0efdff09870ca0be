package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	tracerName        = "marketrank"
	rankingTracerName = "marketrank/ranking"
	cacheTracerName   = "marketrank/cache"
)

// RankStage names one step of serving a ranking request.
type RankStage string

const (
	// RankStageDecode covers parsing and validating the request body.
	RankStageDecode RankStage = "decode"
	// RankStageRank covers config resolution, filter, score, sort and projection.
	RankStageRank RankStage = "rank"
	// RankStageEncode covers serializing the ranked items.
	RankStageEncode RankStage = "encode"
)

// CacheOperation is the kind of ranked output cache access being traced.
type CacheOperation string

const (
	// CacheOperationGet represents a cache lookup.
	CacheOperationGet CacheOperation = "get"
	// CacheOperationSet represents a cache write.
	CacheOperationSet CacheOperation = "set"
)

// StartRankSpan creates a span for one stage of a ranking request.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartRankSpan(ctx, tracing.RankStageRank,
//	    attribute.Int("ranking.records", len(records)))
//	defer endSpan(err)
func StartRankSpan(ctx context.Context, stage RankStage, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(rankingTracerName).Start(ctx, "ranking."+string(stage),
		trace.WithAttributes(attribute.String("ranking.stage", string(stage))),
		trace.WithAttributes(attrs...),
	)
	return ctx, endFunc(span)
}

// StartCacheSpan creates a client span for a ranked output cache access.
// backend is "redis" or "memory".
func StartCacheSpan(ctx context.Context, backend string, operation CacheOperation) (context.Context, func(error)) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache."+string(operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", backend),
			attribute.String("db.operation", string(operation)),
		),
	)
	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
