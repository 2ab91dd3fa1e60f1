// Package telemetry ships API and engine metrics to CloudWatch and fans out
// newly created outbreak alerts over SQS.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"outbreakwatch/internal/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

const (
	// maxDatumsPerCall is the PutMetricData limit per request.
	maxDatumsPerCall = 1000

	defaultFlushInterval = 10 * time.Second
	defaultBufferSize    = 4096
	putTimeout           = 5 * time.Second
)

// CloudWatchMetrics buffers datums in memory and publishes them in batches
// from a background loop, so recording never blocks a request. When the
// buffer is full new datums are dropped and counted.
//
// It implements core.MetricsCollector and outbreak.MetricsRecorder.
type CloudWatchMetrics struct {
	client        CloudWatchClient
	namespace     string
	logger        *slog.Logger
	flushInterval time.Duration

	datums  chan cwtypes.MetricDatum
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped int
}

// Option configures CloudWatchMetrics.
type Option func(*CloudWatchMetrics)

// WithFlushInterval overrides the publish interval.
func WithFlushInterval(d time.Duration) Option {
	return func(m *CloudWatchMetrics) { m.flushInterval = d }
}

// WithBufferSize overrides the number of datums held between flushes.
func WithBufferSize(n int) Option {
	return func(m *CloudWatchMetrics) { m.datums = make(chan cwtypes.MetricDatum, n) }
}

// NewCloudWatchMetrics creates the collector and starts its flush loop.
// Close must be called to publish the remaining datums.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger, opts ...Option) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	m := &CloudWatchMetrics{
		client:        client,
		namespace:     namespace,
		logger:        logger,
		flushInterval: defaultFlushInterval,
		datums:        make(chan cwtypes.MetricDatum, defaultBufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// RecordRequest records API latency per endpoint and status.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimEndpoint), Value: aws.String(method + " " + endpoint)},
			{Name: aws.String(types.DimResult), Value: aws.String(status)},
		},
	})
}

// RecordAlertCreated counts a new ACTIVE alert for the area.
func (m *CloudWatchMetrics) RecordAlertCreated(_ context.Context, areaKey string) {
	m.enqueue(countDatum(types.MetricAlertCreated, 1, types.DimArea, areaKey))
}

// RecordSummaryOutcome counts summary attempts by outcome.
func (m *CloudWatchMetrics) RecordSummaryOutcome(_ context.Context, outcome string) {
	m.enqueue(countDatum(types.MetricSummaryOutcome, 1, types.DimResult, outcome))
}

// RecordHighRiskAreas records how many areas a query classified as high.
func (m *CloudWatchMetrics) RecordHighRiskAreas(_ context.Context, count int) {
	m.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricHighRiskAreas),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordPublishFailure counts alerts that could not be sent to the queue.
func (m *CloudWatchMetrics) RecordPublishFailure(_ context.Context, areaKey string) {
	m.enqueue(countDatum(types.MetricAlertPublishErr, 1, types.DimArea, areaKey))
}

// Dropped returns the number of datums discarded because the buffer was full.
func (m *CloudWatchMetrics) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Close stops the flush loop after publishing buffered datums. It is safe to
// call more than once.
func (m *CloudWatchMetrics) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

func countDatum(name string, value float64, dim, dimValue string) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{{Name: aws.String(dim), Value: aws.String(dimValue)}},
	}
}

func (m *CloudWatchMetrics) enqueue(d cwtypes.MetricDatum) {
	d.Timestamp = aws.Time(time.Now().UTC())
	select {
	case m.datums <- d:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
}

func (m *CloudWatchMetrics) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.flush()
		case <-m.stop:
			m.flush()
			return
		}
	}
}

// flush drains whatever is buffered right now and publishes it in batches.
func (m *CloudWatchMetrics) flush() {
	var batch []cwtypes.MetricDatum
	for {
		select {
		case d := <-m.datums:
			batch = append(batch, d)
			if len(batch) == maxDatumsPerCall {
				m.put(batch)
				batch = nil
			}
		default:
			if len(batch) > 0 {
				m.put(batch)
			}
			return
		}
	}
}

func (m *CloudWatchMetrics) put(batch []cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: batch,
	})
	if err != nil {
		m.logger.Error("failed to publish metrics",
			"error", err.Error(),
			"datums", len(batch),
		)
	}
}
