// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是整个服务的配置树，从 YAML 文件加载后由环境变量覆盖。
// 运行期只读：bootstrap.Init() 里加载一次，之后通过 GetCurrentConfig() 读取。
type Config struct {
	Infra struct {
		Kafka struct {
			Brokers          []string `yaml:"brokers"`
			OutboxTopic      string   `yaml:"outboxTopic"`      // 自消费的出箱事件主题
			BookingTopic     string   `yaml:"bookingTopic"`     // 对外广播的预订事件主题
			NotifyTopic      string   `yaml:"notifyTopic"`      // 通知服务消费的主题
			DeadLetterTopic  string   `yaml:"deadLetterTopic"`  // 反序列化失败等不可恢复消息
			SelfConsumeGroup string   `yaml:"selfConsumeGroup"` // listen-to-yourself 消费组
		} `yaml:"kafka"`
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Nacos struct {
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`

	Collaborators struct {
		FlightServiceURL  string `yaml:"flightServiceUrl"`
		HotelServiceURL   string `yaml:"hotelServiceUrl"`
		PaymentServiceURL string `yaml:"paymentServiceUrl"`
		WebhookURL        string `yaml:"webhookUrl"`
	} `yaml:"collaborators"`

	Booking BookingConfig `yaml:"booking"`
}

// BookingConfig 是预订服务自身的配置段。
type BookingConfig struct {
	// BypassValidation 为 true 时跳过真实库存校验，直接进入 PENDING。
	// 用于没有库存后端的环境。
	BypassValidation    bool
	ReservationTTL      time.Duration // 预订保留窗口
	ExpirySweepInterval time.Duration // 过期清扫间隔
	LockCleanupInterval time.Duration // 锁清理间隔
	OutboxRelayInterval time.Duration // 出箱轮询间隔
	ProcessingTimeout   time.Duration // 单条命令处理超时
	DefaultResourceCap  int           // 容量表缺行时的默认容量
	DedupRetention      time.Duration // 去重键保留时间
	ConfirmationPrefix  string        // 确认号前缀
}

// UnmarshalYAML 手动解码：YAML 里的时长写成 "30m" 这类字符串，
// yaml.v3 不认识 time.Duration；缺失的键保留 defaults() 里的值。
func (b *BookingConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BypassValidation    *bool  `yaml:"bypassValidation"`
		ReservationTTL      string `yaml:"reservationTtl"`
		ExpirySweepInterval string `yaml:"expirySweepInterval"`
		LockCleanupInterval string `yaml:"lockCleanupInterval"`
		OutboxRelayInterval string `yaml:"outboxRelayInterval"`
		ProcessingTimeout   string `yaml:"processingTimeout"`
		DefaultResourceCap  *int   `yaml:"defaultResourceCap"`
		DedupRetention      string `yaml:"dedupRetention"`
		ConfirmationPrefix  string `yaml:"confirmationPrefix"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.BypassValidation != nil {
		b.BypassValidation = *raw.BypassValidation
	}
	if raw.DefaultResourceCap != nil {
		b.DefaultResourceCap = *raw.DefaultResourceCap
	}
	if raw.ConfirmationPrefix != "" {
		b.ConfirmationPrefix = raw.ConfirmationPrefix
	}
	durations := []struct {
		src string
		dst *time.Duration
	}{
		{raw.ReservationTTL, &b.ReservationTTL},
		{raw.ExpirySweepInterval, &b.ExpirySweepInterval},
		{raw.LockCleanupInterval, &b.LockCleanupInterval},
		{raw.OutboxRelayInterval, &b.OutboxRelayInterval},
		{raw.ProcessingTimeout, &b.ProcessingTimeout},
		{raw.DedupRetention, &b.DedupRetention},
	}
	for _, f := range durations {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return errors.Wrapf(err, "parse duration %q", f.src)
		}
		*f.dst = d
	}
	return nil
}

var (
	current *Config
	once    sync.Once
)

// Load 从 path 读取 YAML 并应用环境变量覆盖，幂等。
func Load(path string) (*Config, error) {
	var loadErr error
	once.Do(func() {
		cfg := defaults()
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				loadErr = errors.Wrapf(err, "read config file %s", path)
				return
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				loadErr = errors.Wrap(err, "parse config file")
				return
			}
		}
		applyEnvOverrides(cfg)
		current = cfg
	})
	return current, loadErr
}

// GetCurrentConfig 返回已加载的配置；必须先调用 Load。
func GetCurrentConfig() *Config {
	if current == nil {
		panic("config not loaded: call config.Load first")
	}
	return current
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.OutboxTopic = "booking.Booking.events"
	cfg.Infra.Kafka.BookingTopic = "booking-events-v1"
	cfg.Infra.Kafka.NotifyTopic = "booking-notifications-v1"
	cfg.Infra.Kafka.DeadLetterTopic = "booking.Booking.events.dlt"
	cfg.Infra.Kafka.SelfConsumeGroup = "booking-service-self-group"
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/voyago?parseTime=true"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Booking.ReservationTTL = 30 * time.Minute
	cfg.Booking.ExpirySweepInterval = 60 * time.Second
	cfg.Booking.LockCleanupInterval = 5 * time.Minute
	cfg.Booking.OutboxRelayInterval = 2 * time.Second
	cfg.Booking.ProcessingTimeout = 30 * time.Second
	cfg.Booking.DefaultResourceCap = 100
	cfg.Booking.DedupRetention = 24 * time.Hour
	cfg.Booking.ConfirmationPrefix = "CNF"
	return cfg
}

// applyEnvOverrides 允许容器环境用环境变量覆盖最常变的配置项。
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		cfg.Infra.Mysql.DSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Infra.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("ZK_SERVERS"); ok {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v, ok := os.LookupEnv("NACOS_SERVER_ADDRS"); ok {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v, ok := os.LookupEnv("NACOS_NAMESPACE"); ok {
		cfg.Infra.Nacos.Namespace = v
	}
	if v, ok := os.LookupEnv("BOOKING_VALIDATION_BYPASS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Booking.BypassValidation = b
		}
	}
	if v, ok := os.LookupEnv("BOOKING_EXPIRY_SWEEP_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Booking.ExpirySweepInterval = d
		}
	}
}
