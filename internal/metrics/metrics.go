package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database  *DatabaseMetrics
	Messaging *MessagingMetrics

	detailsSaved         metric.Int64Counter
	reapplications       metric.Int64Counter
	uploadSessionsIssued metric.Int64Counter
	submissionsFinalized metric.Int64Counter
	incompleteUploads    metric.Int64Counter
	sessionsPurged       metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	database, err := NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	messaging, err := NewMessagingMetrics(meter)
	if err != nil {
		return nil, err
	}

	m := &Metrics{Database: database, Messaging: messaging}

	m.detailsSaved, err = meter.Int64Counter(
		"registration.applications.details_saved",
		metric.WithDescription("Total number of application detail saves"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		return nil, err
	}

	m.reapplications, err = meter.Int64Counter(
		"registration.applications.reapplied",
		metric.WithDescription("Total number of rejected applications re-entered into the workflow"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		return nil, err
	}

	m.uploadSessionsIssued, err = meter.Int64Counter(
		"registration.upload_sessions.issued",
		metric.WithDescription("Total number of upload sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	m.submissionsFinalized, err = meter.Int64Counter(
		"registration.applications.submitted",
		metric.WithDescription("Total number of finalized submissions"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		return nil, err
	}

	m.incompleteUploads, err = meter.Int64Counter(
		"registration.applications.incomplete_uploads",
		metric.WithDescription("Finalize attempts rejected because documents were missing"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.sessionsPurged, err = meter.Int64Counter(
		"registration.upload_sessions.purged",
		metric.WithDescription("Expired upload sessions removed by housekeeping"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordDetailsSaved(ctx context.Context, created bool) {
	if m != nil && m.detailsSaved != nil {
		m.detailsSaved.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", created)))
	}
}

func (m *Metrics) RecordReapplication(ctx context.Context) {
	if m != nil && m.reapplications != nil {
		m.reapplications.Add(ctx, 1)
	}
}

func (m *Metrics) RecordUploadSessionIssued(ctx context.Context) {
	if m != nil && m.uploadSessionsIssued != nil {
		m.uploadSessionsIssued.Add(ctx, 1)
	}
}

func (m *Metrics) RecordSubmissionFinalized(ctx context.Context) {
	if m != nil && m.submissionsFinalized != nil {
		m.submissionsFinalized.Add(ctx, 1)
	}
}

func (m *Metrics) RecordIncompleteUpload(ctx context.Context, missing int) {
	if m != nil && m.incompleteUploads != nil {
		m.incompleteUploads.Add(ctx, 1, metric.WithAttributes(attribute.Int("missing", missing)))
	}
}

func (m *Metrics) RecordSessionsPurged(ctx context.Context, n int) {
	if m != nil && m.sessionsPurged != nil && n > 0 {
		m.sessionsPurged.Add(ctx, int64(n))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}, Messaging: &MessagingMetrics{}}
}
