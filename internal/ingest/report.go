package ingest

import (
	"context"
	"errors"

	"github.com/david/scholarship-finder/internal/models"
)

// MultiSink fans a report out to every sink. All sinks are attempted; the
// joined error lists the ones that failed.
type MultiSink []ReportSink

func (m MultiSink) WriteReport(ctx context.Context, report models.IngestionReport) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.WriteReport(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReportSinkFunc adapts a function to ReportSink.
type ReportSinkFunc func(ctx context.Context, report models.IngestionReport) error

func (f ReportSinkFunc) WriteReport(ctx context.Context, report models.IngestionReport) error {
	return f(ctx, report)
}
