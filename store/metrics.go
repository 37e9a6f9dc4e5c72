package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stacklume-engine/domain"
)

const (
	opEventName   = "stacklume.store.operation"
	opEventDomain = "store"
	tracerName    = "stacklume-engine/store"
)

// opMetrics collects the timings and outcome of one store operation and
// emits them once as an observability event plus an OTel span.
type opMetrics struct {
	logger *log.Logger
	span   trace.Span
	op     string
	start  time.Time

	fetchDuration   time.Duration
	applyDuration   time.Duration
	persistDuration time.Duration
	entityID        string
	entityCount     int
	errorStage      string
	rolledBack      bool
}

func newOpMetrics(ctx context.Context, logger *log.Logger, op string) (*opMetrics, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, op)
	return &opMetrics{
		logger: logger,
		span:   span,
		op:     op,
		start:  time.Now(),
	}, spanCtx
}

func (m *opMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *opMetrics) ObserveApply(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.applyDuration = duration
}

func (m *opMetrics) ObservePersist(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.persistDuration = duration
}

func (m *opMetrics) SetEntity(id string) {
	if id == "" {
		return
	}
	m.entityID = id
}

func (m *opMetrics) SetEntityCount(count int) {
	if count < 0 {
		count = 0
	}
	m.entityCount = count
}

func (m *opMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *opMetrics) SetRolledBack() {
	m.rolledBack = true
}

func (m *opMetrics) Log(err error) {
	if m == nil {
		return
	}

	severityText, severityNumber := severityForOutcome(err)

	attrs := []attribute.KeyValue{
		attribute.String("stacklume.store.op", m.op),
		attribute.Float64("stacklume.store.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("stacklume.store.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64("stacklume.store.apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.persistDuration > 0 {
		attrs = append(attrs, attribute.Float64("stacklume.store.persist_ms", durationToMillis(m.persistDuration)))
	}
	if m.entityID != "" {
		attrs = append(attrs, attribute.String("stacklume.store.entity_id", m.entityID))
	}
	if m.entityCount > 0 {
		attrs = append(attrs, attribute.Int("stacklume.store.entities", m.entityCount))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("stacklume.store.error_stage", m.errorStage))
	}
	if m.rolledBack {
		attrs = append(attrs, attribute.Bool("stacklume.store.rolled_back", true))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	var traceID string
	if m.span != nil {
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", opEventName),
			attribute.String("event.domain", opEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		}, attrs...)
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      opEventName,
		"event.domain":    opEventDomain,
		"attributes":      attributesAsMap(attrs),
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if traceID != "" {
		fields["trace_id"] = traceID
	}
	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

// severityForOutcome maps an operation result to OTel log severity.
// Validation rejections are warnings; persistence failures are errors.
func severityForOutcome(err error) (string, int) {
	switch {
	case err == nil:
		return "INFO", 9
	case domain.IsValidation(err):
		return "WARN", 13
	default:
		return "ERROR", 17
	}
}

func attributesAsMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
