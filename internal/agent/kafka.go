package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
)

// KafkaEngine 把用户标签快照发布到 Kafka，由下游同步到智能体平台
type KafkaEngine struct {
	producer sarama.SyncProducer
	topic    string
	source   TagSource
	now      func() time.Time
	logger   *zap.Logger
}

// NewProducerConfig 生产者配置
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	return config
}

// NewKafkaEngine 连接 Kafka 并创建引擎
func NewKafkaEngine(brokers []string, topic string, source TagSource) (*KafkaEngine, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}
	logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewKafkaEngineWithProducer(producer, topic, source), nil
}

// NewKafkaEngineWithProducer 使用已有的生产者
func NewKafkaEngineWithProducer(producer sarama.SyncProducer, topic string, source TagSource) *KafkaEngine {
	return &KafkaEngine{
		producer: producer,
		topic:    topic,
		source:   source,
		now:      time.Now,
		logger:   logger.Named("agent"),
	}
}

// SyncUserTags 读取用户标签快照并发布
func (e *KafkaEngine) SyncUserTags(ctx context.Context, userID int64) (bool, error) {
	ok, err := e.publish(ctx, userID)
	metrics.AgentSyncs.WithLabelValues(metrics.Status(err)).Inc()
	return ok, err
}

func (e *KafkaEngine) publish(ctx context.Context, userID int64) (bool, error) {
	if e == nil || e.producer == nil {
		return false, fmt.Errorf("Kafka生产者未初始化")
	}

	tags, err := e.source.UserTags(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("读取用户标签失败: %w", err)
	}

	event := TagSyncEvent{
		EventID:  uuid.NewString(),
		UserID:   userID,
		Tags:     tags,
		SyncedAt: e.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("序列化消息失败: %w", err)
	}

	userKey := strconv.FormatInt(userID, 10)
	msg := &sarama.ProducerMessage{
		Topic: e.topic,
		Key:   sarama.StringEncoder(userKey),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("user_id"), Value: []byte(userKey)},
			{Key: []byte("event_id"), Value: []byte(event.EventID)},
		},
	}

	partition, offset, err := e.producer.SendMessage(msg)
	if err != nil {
		e.logger.Error("发送标签同步消息失败", zap.Int64("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("发送消息失败: %w", err)
	}

	e.logger.Debug("标签同步消息发送成功",
		zap.Int64("user_id", userID),
		zap.Int("tag_count", len(tags)),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return true, nil
}

// Close 关闭生产者
func (e *KafkaEngine) Close() error {
	if e != nil && e.producer != nil {
		return e.producer.Close()
	}
	return nil
}
