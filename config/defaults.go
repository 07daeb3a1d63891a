// =============================================================================
// 📦 MysteryShopper 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultUserAgent 伪装的桌面 Chrome User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Browser:   DefaultBrowserConfig(),
		Journey:   DefaultJourneyConfig(),
		Oracle:    DefaultOracleConfig(),
		Artifacts: DefaultArtifactsConfig(),
		Store:     DefaultStoreConfig(),
		Cache:     DefaultCacheConfig(),
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultBrowserConfig 返回默认浏览器配置
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		UserAgent:         DefaultUserAgent,
		OperationTimeout:  90 * time.Second,
		ScreenshotTimeout: 20 * time.Second,
		ClickTimeout:      5 * time.Second,
		LoadSettle:        3 * time.Second,
		ExtraFlags:        []string{"disable-blink-features=AutomationControlled"},
	}
}

// DefaultJourneyConfig 返回默认旅程配置
func DefaultJourneyConfig() JourneyConfig {
	return JourneyConfig{
		MaxSteps:      6,
		DefaultGoal:   "Sign up for a free trial",
		StepSettle:    2 * time.Second,
		PostClick:     2 * time.Second,
		PostScroll:    1 * time.Second,
		StepCooldown:  1 * time.Second,
		ErrorBackoff:  2 * time.Second,
		ScrollDelta:   500,
		HistoryWindow: 3,
	}
}

// DefaultOracleConfig 返回默认视觉模型配置
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		Provider:          "gemini",
		Model:             "gemini-2.5-flash-lite",
		Timeout:           60 * time.Second,
		Temperature:       0.2,
		MaxRetries:        0,
		RequestsPerMinute: 0,
	}
}

// DefaultArtifactsConfig 返回默认截图存储配置
func DefaultArtifactsConfig() ArtifactsConfig {
	return ArtifactsConfig{
		Dir: "screenshots",
	}
}

// DefaultStoreConfig 返回默认持久化配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: "memory",
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Host:            "localhost",
			Port:            5432,
			User:            "shopper",
			Name:            "mysteryshopper.db",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "shopper:journey:",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "mysteryshopper",
			Collection: "journeys",
		},
	}
}

// DefaultCacheConfig 返回默认报告缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		KeyPrefix: "shopper:",
		TTL:       time.Hour,
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:              8080,
		MetricsPort:           9091,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ShutdownTimeout:       15 * time.Second,
		MaxConcurrentJourneys: 2,
		RateLimitRPS:          20,
		RateLimitBurst:        40,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mysteryshopper",
		SampleRate:   0.1,
	}
}
