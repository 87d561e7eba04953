package analytics

import (
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Default Kafka topics.
const (
	DefaultResultTopic = "doublecube.results"
	DefaultMatchTopic  = "doublecube.matches"
)

// KafkaConfig configures the result publisher.
type KafkaConfig struct {
	Brokers     []string
	ResultTopic string
	MatchTopic  string
}

// Kafka publishes settled games and completed matches as JSON
// messages keyed by session so one session stays in partition order.
// Move events are not published here; they go to the ClickHouse sink.
type Kafka struct {
	producer    sarama.AsyncProducer
	resultTopic string
	matchTopic  string
	log         *zap.SugaredLogger
	drain       sync.WaitGroup
}

// OpenKafka dials the brokers and starts the publisher.
func OpenKafka(cfg KafkaConfig, log *zap.SugaredLogger) (*Kafka, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return NewKafka(producer, cfg, log), nil
}

// NewKafka wraps an existing producer. The error channel is drained in
// the background so a sick broker only costs log lines.
func NewKafka(producer sarama.AsyncProducer, cfg KafkaConfig, log *zap.SugaredLogger) *Kafka {
	k := &Kafka{
		producer:    producer,
		resultTopic: cfg.ResultTopic,
		matchTopic:  cfg.MatchTopic,
		log:         log,
	}
	if k.resultTopic == "" {
		k.resultTopic = DefaultResultTopic
	}
	if k.matchTopic == "" {
		k.matchTopic = DefaultMatchTopic
	}
	k.drain.Add(1)
	go func() {
		defer k.drain.Done()
		for perr := range producer.Errors() {
			k.log.Warnw("kafka publish failed", "topic", perr.Msg.Topic, "error", perr.Err)
		}
	}()
	return k
}

func (k *Kafka) publish(topic, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		k.log.Warnw("kafka encode failed", "topic", topic, "error", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	select {
	case k.producer.Input() <- msg:
	default:
		k.log.Warnw("kafka buffer full, dropping event", "topic", topic, "key", key)
	}
}

// RecordMove is a no-op; move rows belong to the ClickHouse sink.
func (k *Kafka) RecordMove(MoveEvent) {}

// RecordGame publishes a settled game.
func (k *Kafka) RecordGame(ev GameEvent) {
	k.publish(k.resultTopic, ev.SessionID, ev)
}

// RecordMatch publishes a completed match.
func (k *Kafka) RecordMatch(ev MatchEvent) {
	k.publish(k.matchTopic, ev.SessionID, ev)
}

// Close flushes pending messages and stops the error drain.
func (k *Kafka) Close() error {
	err := k.producer.Close()
	k.drain.Wait()
	return err
}
