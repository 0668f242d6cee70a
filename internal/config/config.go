package config

import (
	"time"

	"github.com/wekeepgrowing/research-agent/pkg/config"
	"github.com/wekeepgrowing/research-agent/pkg/logger"
	"go.uber.org/zap"
)

// Config holds the research service configuration.
type Config struct {
	Service struct {
		Name    string
		Version string
	}

	Server struct {
		HTTP struct {
			Port    string
			Timeout int
			Debug   bool
		}
	}

	Database struct {
		Path string
	}

	Cache struct {
		Backend string // memory or redis
		TTL     time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Pipeline struct {
		MaxAttempts      int
		RetryBackoff     time.Duration
		SyncTimeout      time.Duration
		BackgroundBudget time.Duration
		PollInterval     time.Duration
	}

	LLM struct {
		Host           string
		RouterModel    string
		ClarifierModel string
		WriterModel    string
		CheckerModel   string
	}

	DeepResearch struct {
		BaseURL string
		APIKey  string
		Model   string
	}

	Log struct {
		Level  string
		Format string
		Output string
	}

	Logger *zap.Logger
}

// Load reads the research service config file and builds the logger.
func Load() (*Config, error) {
	cfg, err := config.Load("research")
	if err != nil {
		return nil, err
	}

	appConfig := &Config{}

	appConfig.Service.Name = cfg.GetString("service.name")
	appConfig.Service.Version = cfg.GetString("service.version")

	appConfig.Server.HTTP.Port = cfg.GetString("server.port")
	appConfig.Server.HTTP.Timeout = cfg.GetInt("server.timeout")
	appConfig.Server.HTTP.Debug = cfg.GetBool("server.debug")

	appConfig.Database.Path = cfg.GetString("database.path")

	appConfig.Cache.Backend = cfg.GetString("cache.backend")
	appConfig.Cache.TTL = time.Duration(cfg.GetInt("cache.ttl_seconds")) * time.Second

	appConfig.Redis.Addr = cfg.GetString("redis.addr")
	appConfig.Redis.Password = cfg.GetString("redis.password")
	appConfig.Redis.DB = cfg.GetInt("redis.db")

	appConfig.Pipeline.MaxAttempts = cfg.GetInt("pipeline.max_attempts")
	appConfig.Pipeline.RetryBackoff = time.Duration(cfg.GetInt("pipeline.retry_backoff_ms")) * time.Millisecond
	appConfig.Pipeline.SyncTimeout = time.Duration(cfg.GetInt("pipeline.sync_timeout_seconds")) * time.Second
	appConfig.Pipeline.BackgroundBudget = time.Duration(cfg.GetInt("pipeline.background_budget_seconds")) * time.Second
	appConfig.Pipeline.PollInterval = time.Duration(cfg.GetInt("pipeline.poll_interval_seconds")) * time.Second

	appConfig.LLM.Host = cfg.GetString("llm.host")
	appConfig.LLM.RouterModel = cfg.GetString("llm.router_model")
	appConfig.LLM.ClarifierModel = cfg.GetString("llm.clarifier_model")
	appConfig.LLM.WriterModel = cfg.GetString("llm.writer_model")
	appConfig.LLM.CheckerModel = cfg.GetString("llm.checker_model")

	appConfig.DeepResearch.BaseURL = cfg.GetString("deep_research.base_url")
	appConfig.DeepResearch.APIKey = cfg.GetString("deep_research.api_key")
	appConfig.DeepResearch.Model = cfg.GetString("deep_research.model")

	appConfig.Log.Level = cfg.GetString("log.level")
	appConfig.Log.Format = cfg.GetString("log.format")
	appConfig.Log.Output = cfg.GetString("log.output")

	appConfig.applyDefaults()

	loggerConfig := logger.Config{
		Level:       appConfig.Log.Level,
		Format:      appConfig.Log.Format,
		Output:      appConfig.Log.Output,
		Development: appConfig.Server.HTTP.Debug,
	}

	appConfig.Logger, err = logger.NewZapLogger(loggerConfig)
	if err != nil {
		return nil, err
	}

	return appConfig, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTP.Port == "" {
		c.Server.HTTP.Port = "8080"
	}
	if c.Server.HTTP.Timeout == 0 {
		c.Server.HTTP.Timeout = 180
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/tasks.db"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Pipeline.MaxAttempts == 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.RetryBackoff == 0 {
		c.Pipeline.RetryBackoff = 500 * time.Millisecond
	}
	if c.Pipeline.SyncTimeout == 0 {
		c.Pipeline.SyncTimeout = 2 * time.Minute
	}
	if c.Pipeline.BackgroundBudget == 0 {
		c.Pipeline.BackgroundBudget = 15 * time.Minute
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = 2 * time.Second
	}
}
