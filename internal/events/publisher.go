// Package events publishes ingestion reports to Kafka for downstream
// consumers (dashboards, alerting).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReportPublisher is a report sink writing one message per source run.
type ReportPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewReportPublisher(brokers []string, topic string, log *zap.Logger) *ReportPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &ReportPublisher{writer: writer, topic: topic, logger: logger.OrNop(log)}
}

// ReportEvent is the message body.
type ReportEvent struct {
	Type string `json:"type"`
	models.IngestionReport
}

const EventReportWritten = "ingestion.report"

func (p *ReportPublisher) WriteReport(ctx context.Context, report models.IngestionReport) error {
	data, err := json.Marshal(ReportEvent{Type: EventReportWritten, IngestionReport: report})
	if err != nil {
		return fmt.Errorf("failed to marshal report event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(EventReportWritten)},
		{Key: "source", Value: []byte(report.Source)},
		{Key: "status", Value: []byte(report.Status)},
		{Key: "run_id", Value: []byte(report.RunID.String())},
	}

	// Keyed by source so one source's reports stay ordered on a partition.
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(report.Source),
		Value:   data,
		Headers: headers,
	}); err != nil {
		p.logger.Error("failed to publish ingestion report",
			zap.String("topic", p.topic), zap.String("source", report.Source), zap.Error(err))
		return fmt.Errorf("publish report %s: %w", report.Source, err)
	}

	p.logger.Debug("published ingestion report", zap.String("source", report.Source), zap.String("status", report.Status))
	return nil
}

func (p *ReportPublisher) Close() error {
	return p.writer.Close()
}
