package store

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Yates-Labs/aethel/internal/store"

// Traced wraps a Store with spans and structured logs around every call.
func Traced(s Store, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &tracedStore{
		next:   s,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}
}

type tracedStore struct {
	next   Store
	logger *slog.Logger
	tracer trace.Tracer
}

func (t *tracedStore) Name() string {
	return t.next.Name()
}

func (t *tracedStore) Read(ctx context.Context, path string) (Document, error) {
	ctx, span := t.tracer.Start(ctx, "store.Read", trace.WithAttributes(
		attribute.String("store.backend", t.next.Name()),
		attribute.String("store.path", path),
	))
	defer span.End()

	doc, err := t.next.Read(ctx, path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		t.logger.Debug("store read failed", "backend", t.next.Name(), "path", path, "error", err)
		return doc, err
	}
	span.SetAttributes(attribute.Int("store.bytes", len(doc.Content)))
	t.logger.Debug("store read", "backend", t.next.Name(), "path", path, "version", doc.Version, "bytes", len(doc.Content))
	return doc, nil
}

func (t *tracedStore) Write(ctx context.Context, path, content, version string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "store.Write", trace.WithAttributes(
		attribute.String("store.backend", t.next.Name()),
		attribute.String("store.path", path),
		attribute.Bool("store.create", version == ""),
		attribute.Int("store.bytes", len(content)),
	))
	defer span.End()

	v, err := t.next.Write(ctx, path, content, version)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn("store write failed", "backend", t.next.Name(), "path", path, "error", err)
		return "", err
	}
	t.logger.Info("store write", "backend", t.next.Name(), "path", path, "version", v)
	return v, nil
}
