// Package config 负责加载和校验应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 它在进程启动时构造一次，随后以值的方式注入各组件，
// 业务逻辑内部不读取任何全局配置状态。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	WebSearch     WebSearchConfig     `mapstructure:"web_search"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 文本抽取服务的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储子块向量索引的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储上传原始文件的对象存储配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// Dimensions 决定子块向量的维度，索引建立后不可变更。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	TimeoutSec int                 `mapstructure:"timeout_sec"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与上下文包裹格式（可选）。
type LLMPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// WebSearchConfig 存储 Tavily 联网搜索的配置。
type WebSearchConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxResults int    `mapstructure:"max_results"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// RetrievalConfig 控制检索管线的行为。
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	ParentChunkSize     int     `mapstructure:"parent_chunk_size"`
	ChildChunkSize      int     `mapstructure:"child_chunk_size"`
	ChildChunkOverlap   int     `mapstructure:"child_chunk_overlap"`
	MaxQueryVariants    int     `mapstructure:"max_query_variants"`
	ContextBudgetRunes  int     `mapstructure:"context_budget_runes"`
}

// MemoryConfig 控制会话记忆的行为。
type MemoryConfig struct {
	RecentMessages  int `mapstructure:"recent_messages"`
	SummaryTrigger  int `mapstructure:"summary_trigger_messages"`
	SessionTTLHours int `mapstructure:"session_ttl_hours"`
}

// KnowledgeBaseConfig 存储知识库种子目录。
type KnowledgeBaseConfig struct {
	SeedDir    string `mapstructure:"seed_dir"`
	DatasetDir string `mapstructure:"dataset_dir"`
}

// Load 从指定路径读取 YAML 配置并填充默认值。
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("embedding.timeout_sec", 15)
	v.SetDefault("llm.timeout_sec", 60)
	v.SetDefault("web_search.base_url", "https://api.tavily.com")
	v.SetDefault("web_search.max_results", 3)
	v.SetDefault("web_search.timeout_sec", 10)
	v.SetDefault("retrieval.top_k", 10)
	v.SetDefault("retrieval.similarity_threshold", 0.5)
	v.SetDefault("retrieval.parent_chunk_size", 1500)
	v.SetDefault("retrieval.child_chunk_size", 500)
	v.SetDefault("retrieval.child_chunk_overlap", 50)
	v.SetDefault("retrieval.max_query_variants", 3)
	v.SetDefault("retrieval.context_budget_runes", 6000)
	v.SetDefault("memory.recent_messages", 10)
	v.SetDefault("memory.summary_trigger_messages", 20)
	v.SetDefault("memory.session_ttl_hours", 168)
	v.SetDefault("kafka.group_id", "studynet-go-consumer")
}

// Validate 校验无法赋默认值的必填项。
func (c Config) Validate() error {
	if c.Database.MySQL.DSN == "" {
		return fmt.Errorf("配置缺失: database.mysql.dsn")
	}
	if c.Elasticsearch.Addresses == "" {
		return fmt.Errorf("配置缺失: elasticsearch.addresses")
	}
	if c.Elasticsearch.IndexName == "" {
		return fmt.Errorf("配置缺失: elasticsearch.index_name")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("配置非法: embedding.dimensions 必须为正数")
	}
	if c.Retrieval.ParentChunkSize <= 0 || c.Retrieval.ChildChunkSize <= 0 {
		return fmt.Errorf("配置非法: 分块大小必须为正数")
	}
	if c.Retrieval.ChildChunkSize >= c.Retrieval.ParentChunkSize {
		return fmt.Errorf("配置非法: 子块大小必须小于父块大小")
	}
	return nil
}
