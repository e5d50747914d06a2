package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"screentime/internal/config"
	"screentime/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each row as a JSON message keyed by source, so one
// device's events stay ordered within a partition.
type KafkaSink struct {
	enabled bool
	writer  messageWriter
}

type kafkaMessage struct {
	Timestamp string  `json:"timestamp"`
	App       string  `json:"app"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Source    string  `json:"source"`
	Category  string  `json:"category"`
}

func NewKafka(cfg config.KafkaConfig) *KafkaSink {
	if !cfg.Enabled || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return &KafkaSink{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaSink{enabled: true, writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Push(ctx context.Context, rows []model.ExportRow) error {
	if !s.enabled || s.writer == nil {
		return ErrNotConfigured
	}
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(rows))
	for _, row := range rows {
		value, err := json.Marshal(kafkaMessage{
			Timestamp: row.Timestamp.Format(model.TimestampLayout),
			App:       row.App,
			Title:     row.Title,
			Duration:  row.Duration,
			Source:    row.Source,
			Category:  row.Category,
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(row.Source), Value: value, Time: row.Timestamp})
	}
	return s.writer.WriteMessages(ctx, msgs...)
}

func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
