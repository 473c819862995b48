package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("no-such-file.yaml")
	assert.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "inventory-worker", cfg.Consumer.GroupID)
}

func TestBrokerListEnvOverride(t *testing.T) {
	// 逗号分隔列表允许空格和尾随逗号
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ZOOKEEPER_SERVERS", "zk-1:2181")

	cfg, err := Load("no-such-file.yaml")
	assert.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, []string{"zk-1:2181"}, cfg.Infra.Zookeeper.Servers)
}
