// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("foxlate/convert/ast")

// startParseSpan opens a span for one parse call.
func startParseSpan(ctx context.Context, filePath string, sizeBytes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.Parse",
		trace.WithAttributes(
			attribute.String("file.path", filePath),
			attribute.Int("file.size_bytes", sizeBytes),
		))
}

// setParseSpanResult records the parse outcome on the span.
func setParseSpanResult(span trace.Span, variant string, hadErrors bool, elapsed time.Duration) {
	span.SetAttributes(
		attribute.String("parse.variant", variant),
		attribute.Bool("parse.syntax_errors", hadErrors),
		attribute.Int64("parse.duration_ms", elapsed.Milliseconds()),
	)
}
