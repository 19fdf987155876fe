package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// APIKeys 非空时 /api 路由要求 X-Api-Key
	APIKeys []string `mapstructure:"apiKeys"`
}

// BusConfig 总线过滤（id & mask == filterId & mask）
type BusConfig struct {
	Bus        int    `mapstructure:"bus"`
	FilterID   uint32 `mapstructure:"filterId"`
	FilterMask uint32 `mapstructure:"filterMask"`
}

// TCPConfig candump 文本 TCP 入口
type TCPConfig struct {
	Enable         bool          `mapstructure:"enable"`
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	MaxConnections int           `mapstructure:"maxConnections"`
	RatePerSec     int           `mapstructure:"ratePerSec"`
	Burst          int           `mapstructure:"burst"`
}

// SocketCANConfig 原生 SocketCAN 入口
type SocketCANConfig struct {
	Enable bool   `mapstructure:"enable"`
	Iface  string `mapstructure:"iface"`
}

// ReplayConfig candump 日志回放
type ReplayConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Path     string `mapstructure:"path"`
	Realtime bool   `mapstructure:"realtime"`
}

// SourcesConfig 帧来源
type SourcesConfig struct {
	TCP       TCPConfig       `mapstructure:"tcp"`
	SocketCAN SocketCANConfig `mapstructure:"socketcan"`
	Replay    ReplayConfig    `mapstructure:"replay"`
}

// DecoderConfig 解码选项
type DecoderConfig struct {
	VerifyChecksum bool `mapstructure:"verifyChecksum"`
	QueueSize      int  `mapstructure:"queueSize"`
}

// RedisConfig Redis 发布配置
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Channel     string        `mapstructure:"channel"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
	PoolSize    int           `mapstructure:"poolSize"`
	// MirrorMotors 同步电机快照到 mks:motor:{addr}
	MirrorMotors bool `mapstructure:"mirrorMotors"`
}

// OutputConfig 显示行输出
type OutputConfig struct {
	Stdout bool        `mapstructure:"stdout"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// SessionConfig 电机在线跟踪
type SessionConfig struct {
	MaxMotors  int           `mapstructure:"maxMotors"`
	StaleAfter time.Duration `mapstructure:"staleAfter"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Bus     BusConfig     `mapstructure:"bus"`
	Sources SourcesConfig `mapstructure:"sources"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Output  OutputConfig  `mapstructure:"output"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 MKS_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 MKS_，并将点号替换为下划线
	v.SetEnvPrefix("MKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrInvalid 配置取值非法
var ErrInvalid = errors.New("config: invalid value")

// Validate 校验取值范围
func (c *Config) Validate() error {
	if c.Session.MaxMotors <= 0 {
		return fmt.Errorf("%w: session.maxMotors=%d", ErrInvalid, c.Session.MaxMotors)
	}
	if c.Bus.FilterMask > 0x1FFFFFFF {
		return fmt.Errorf("%w: bus.filterMask=0x%X", ErrInvalid, c.Bus.FilterMask)
	}
	if c.Sources.SocketCAN.Enable && c.Sources.SocketCAN.Iface == "" {
		return fmt.Errorf("%w: sources.socketcan.iface is empty", ErrInvalid)
	}
	if c.Sources.Replay.Enable && c.Sources.Replay.Path == "" {
		return fmt.Errorf("%w: sources.replay.path is empty", ErrInvalid)
	}
	if c.Output.Redis.Enabled && c.Output.Redis.Channel == "" {
		return fmt.Errorf("%w: output.redis.channel is empty", ErrInvalid)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mks-gateway")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.apiKeys", []string{})

	v.SetDefault("bus.bus", -1)
	v.SetDefault("bus.filterId", 0)
	v.SetDefault("bus.filterMask", 0)

	v.SetDefault("sources.tcp.enable", true)
	v.SetDefault("sources.tcp.addr", ":7000")
	v.SetDefault("sources.tcp.readTimeout", "60s")
	v.SetDefault("sources.tcp.writeTimeout", "10s")
	v.SetDefault("sources.tcp.maxConnections", 64)
	v.SetDefault("sources.tcp.ratePerSec", 10)
	v.SetDefault("sources.tcp.burst", 20)

	v.SetDefault("sources.socketcan.enable", false)
	v.SetDefault("sources.socketcan.iface", "can0")

	v.SetDefault("sources.replay.enable", false)
	v.SetDefault("sources.replay.path", "")
	v.SetDefault("sources.replay.realtime", false)

	v.SetDefault("decoder.verifyChecksum", false)
	v.SetDefault("decoder.queueSize", 1024)

	v.SetDefault("output.stdout", true)
	v.SetDefault("output.redis.enabled", false)
	v.SetDefault("output.redis.addr", "localhost:6379")
	v.SetDefault("output.redis.password", "")
	v.SetDefault("output.redis.db", 0)
	v.SetDefault("output.redis.channel", "mks:lines")
	v.SetDefault("output.redis.dialTimeout", "3s")
	v.SetDefault("output.redis.poolSize", 10)
	v.SetDefault("output.redis.mirrorMotors", true)

	v.SetDefault("session.maxMotors", 16)
	v.SetDefault("session.staleAfter", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/mks-gateway.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
