package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mentraflow/mentraflow/app/core/srv"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	conf.SetConfigBytes(raw)

	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}
	conf.applyDefaults()

	return *conf
}

func (c CoreConfig) LoadCustomConfig(cfg any) error {
	if len(c.bytes) == 0 {
		return nil
	}
	if err := toml.Unmarshal(c.bytes, cfg); err != nil {
		return err
	}
	return nil
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	c.applyDefaults()
	return c
}

type CoreConfig struct {
	Addr     string      `toml:"addr"`
	Log      Log         `toml:"log"`
	Postgres PGConfig    `toml:"postgres"`
	Redis    RedisConfig `toml:"redis"`

	AI srv.AIConfig `toml:"ai"`

	Ingest    IngestConfig    `toml:"ingest"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Process   ProcessConfig   `toml:"process"`

	bytes []byte `toml:"-"`
}

func (c *CoreConfig) SetConfigBytes(raw []byte) {
	c.bytes = raw
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("MENTRAFLOW_SERVICE_ADDRESS")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
}

func (c *CoreConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":33031"
	}
	c.Ingest.applyDefaults()
	c.Retrieval.applyDefaults()
	c.Process.applyDefaults()
}

// IngestConfig 文档入库流水线配置
type IngestConfig struct {
	ChunkSize      int  `toml:"chunk_size"`      // 分片长度（字符数），默认 800
	ChunkOverlap   int  `toml:"chunk_overlap"`   // 相邻分片重叠长度，默认 120
	AutoSummary    bool `toml:"auto_summary"`    // 入库完成后自动生成摘要
	AutoFlashcards bool `toml:"auto_flashcards"` // 入库完成后自动生成闪卡，使用默认卡片类型
	AutoKG         bool `toml:"auto_kg"`         // 入库完成后自动抽取知识图谱

	DefaultCardType string `toml:"default_card_type"` // 闪卡默认类型 qa/mcq
	MaxCards        int    `toml:"max_cards"`         // 单次生成闪卡上限，默认 20
}

func (c *IngestConfig) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 120
	}
	if c.DefaultCardType == "" {
		c.DefaultCardType = "qa"
	}
	if c.MaxCards <= 0 {
		c.MaxCards = 20
	}
}

// RetrievalConfig 向量检索配置
type RetrievalConfig struct {
	TopK            int     `toml:"top_k"`             // 最终返回的分片数量，默认 8
	Threshold       float64 `toml:"threshold"`         // 相似度硬阈值，低于该值的结果直接丢弃，默认 0.5
	DiversityWindow int     `toml:"diversity_window"`  // 同文档相邻分片去重窗口，0 表示关闭
	QueryCacheTTL   int     `toml:"query_cache_ttl"`   // 查询向量缓存时间（秒），默认 600
	CandidateLimit  int     `toml:"candidate_limit"`   // 每路召回的候选数量，默认 20
}

func (c *RetrievalConfig) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 8
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	if c.QueryCacheTTL <= 0 {
		c.QueryCacheTTL = 600
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 20
	}
}

// ProcessConfig 后台任务处理配置
type ProcessConfig struct {
	IngestionConcurrency  int `toml:"ingestion_concurrency"`  // 入库并发 worker 数，默认 2
	GenerationConcurrency int `toml:"generation_concurrency"` // 生成类任务并发 worker 数，默认 4
	StaleRunSeconds       int `toml:"stale_run_seconds"`      // running 任务无心跳超过该秒数视为僵死，默认 1800
}

func (c *ProcessConfig) applyDefaults() {
	if c.IngestionConcurrency <= 0 {
		c.IngestionConcurrency = 2
	}
	if c.GenerationConcurrency <= 0 {
		c.GenerationConcurrency = 4
	}
	if c.StaleRunSeconds <= 0 {
		c.StaleRunSeconds = 1800
	}
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("MENTRAFLOW_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`     // Redis地址，格式: host:port
	Password string `toml:"password"` // Redis密码
	DB       int    `toml:"db"`       // Redis数据库索引 (0-15)

	// 连接池配置
	PoolSize     int `toml:"pool_size"`      // 连接池大小，默认10
	MinIdleConns int `toml:"min_idle_conns"` // 最小空闲连接数，默认0

	KeyPrefix string `toml:"key_prefix"` // Redis键前缀，用于隔离不同环境/应用
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("MENTRAFLOW_REDIS_ADDR")
	r.Password = os.Getenv("MENTRAFLOW_REDIS_PASSWORD")
	if dbStr := os.Getenv("MENTRAFLOW_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("MENTRAFLOW_LOG_LEVEL")
	l.Path = os.Getenv("MENTRAFLOW_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
