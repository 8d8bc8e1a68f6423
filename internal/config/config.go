package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/eduline/chat-gateway/pkg/config"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Kafka     KafkaConfig
	Presence  PresenceConfig
	Typing    TypingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	FanoutChannel string `mapstructure:"fanout_channel"`
}

type NATSConfig struct {
	URL            string
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type KafkaConfig struct {
	Brokers    string
	Topic      string
	Partitions int
}

type PresenceConfig struct {
	OnlineTTL         time.Duration `mapstructure:"online_ttl"`
	OfflineTTL        time.Duration `mapstructure:"offline_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type TypingConfig struct {
	AutoStopDelay time.Duration `mapstructure:"auto_stop_delay"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.fanout_channel", "chat:fanout")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.request_timeout", "5s")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("presence.online_ttl", "300s")
	v.SetDefault("presence.offline_ttl", "24h")
	v.SetDefault("presence.heartbeat_interval", "2m")
	v.SetDefault("typing.auto_stop_delay", "3s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.fanout_channel", "REDIS_FANOUT_CHANNEL")
	v.BindEnv("nats.url", "NATS_URL")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.NATS.RequestTimeout = parseDuration(v, "nats.request_timeout", 5*time.Second)
	cfg.Presence.OnlineTTL = parseDuration(v, "presence.online_ttl", 300*time.Second)
	cfg.Presence.OfflineTTL = parseDuration(v, "presence.offline_ttl", 24*time.Hour)
	cfg.Presence.HeartbeatInterval = parseDuration(v, "presence.heartbeat_interval", 2*time.Minute)
	cfg.Typing.AutoStopDelay = parseDuration(v, "typing.auto_stop_delay", 3*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
