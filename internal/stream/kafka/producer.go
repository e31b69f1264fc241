// Package kafka streams finished execution records to a Kafka topic for
// downstream analytics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
}

// ProducerOption mutates a ProducerConfig.
type ProducerOption func(*ProducerConfig)

// WithBrokers sets the bootstrap brokers.
func WithBrokers(brokers ...string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithTopic sets the destination topic.
func WithTopic(topic string) ProducerOption {
	return func(c *ProducerConfig) { c.Topic = topic }
}

// WithCompression selects gzip, snappy, lz4 or zstd.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithAsync makes WriteMessages return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes execution records keyed by opportunity id, so all
// attempts for one opportunity land on the same partition.
type Producer struct {
	writer  messageWriter
	topic   string
	comp    string
	metrics *producerMetrics
	logger  *slog.Logger
}

// NewProducer creates a Producer. reg may be nil to skip metrics.
func NewProducer(reg prometheus.Registerer, logger *slog.Logger, opts ...ProducerOption) (*Producer, error) {
	cfg := ProducerConfig{
		Topic:        "mevbot.executions",
		RequiredAcks: int(kafka.RequireAll),
		Compression:  "snappy",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	return newProducer(w, cfg.Topic, cfg.Compression, reg, logger), nil
}

func newProducer(w messageWriter, topic, comp string, reg prometheus.Registerer, logger *slog.Logger) *Producer {
	return &Producer{
		writer:  w,
		topic:   topic,
		comp:    comp,
		metrics: newProducerMetrics(reg),
		logger:  logger.With(slog.String("component", "kafka_producer")),
	}
}

// Handle implements domain.ResultSink.
func (p *Producer) Handle(ctx context.Context, rec domain.ExecutionRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kafka: marshal execution %s: %w", rec.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.Opportunity.ID),
		Value: value,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(rec.Result.Outcome)},
			{Key: "strategy", Value: []byte(rec.Opportunity.Strategy)},
		},
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.observe(p.topic, p.comp, len(value), time.Since(start), err)
	if err != nil {
		p.logger.WarnContext(ctx, "publish failed",
			slog.String("execution_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("kafka: publish execution %s: %w", rec.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevbot",
			Name:      "kafka_producer_messages_total",
			Help:      "Execution records published to Kafka.",
		}, []string{"topic", "result"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevbot",
			Name:      "kafka_producer_bytes_total",
			Help:      "Payload bytes published to Kafka.",
		}, []string{"topic", "compression"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mevbot",
			Name:      "kafka_producer_publish_seconds",
			Help:      "Kafka publish latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic, comp string, n int, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, result).Inc()
	m.bytes.WithLabelValues(topic, comp).Add(float64(n))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}

var _ domain.ResultSink = (*Producer)(nil)
