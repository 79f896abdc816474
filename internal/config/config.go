package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DBPath    string           `json:"db_path"`
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	BlobStore BlobStoreConfig  `json:"blob_store"`
	AI        AIConfig         `json:"ai"`
	Retrieval RetrievalConfig  `json:"retrieval"`
}

type BlobStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
	Timeout    int         `json:"timeout"`
	MaxRetries int         `json:"max_retries"`
	Data       interface{} `json:"data"`
}

type RetrievalConfig struct {
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	Metric           string `json:"metric"`
	MaxTopK          int    `json:"max_top_k"`
	MaxUploadBytes   int64  `json:"max_upload_bytes"`
	QueryCacheSize   int    `json:"query_cache_size"`
	QueryCacheTTL    int    `json:"query_cache_ttl"`
	EmbedCacheSize   int    `json:"embed_cache_size"`
	EmbedCacheTTL    int    `json:"embed_cache_ttl"`
	RebuildThreshold int    `json:"rebuild_threshold"`
	PersistIndex     bool   `json:"persist_index"`
	MaintainSpec     string `json:"maintain_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.BlobStore.Type == "" {
		cfg.BlobStore.Type = "local"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	applyRetrievalDefaults(&cfg.Retrieval)
	if cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return nil, fmt.Errorf("retrieval.chunk_overlap must be smaller than retrieval.chunk_size")
	}
	switch cfg.Retrieval.Metric {
	case "cosine", "inner_product":
	default:
		return nil, fmt.Errorf("retrieval.metric must be cosine or inner_product")
	}
	return &cfg, nil
}

func applyRetrievalDefaults(rc *RetrievalConfig) {
	if rc.ChunkSize == 0 {
		rc.ChunkSize = 500
	}
	if rc.ChunkOverlap == 0 {
		rc.ChunkOverlap = 50
	}
	if rc.Metric == "" {
		rc.Metric = "cosine"
	}
	if rc.MaxTopK == 0 {
		rc.MaxTopK = 20
	}
	if rc.MaxUploadBytes == 0 {
		rc.MaxUploadBytes = 50 << 20
	}
	if rc.QueryCacheSize == 0 {
		rc.QueryCacheSize = 1024
	}
	if rc.QueryCacheTTL == 0 {
		rc.QueryCacheTTL = 3600
	}
	if rc.EmbedCacheSize == 0 {
		rc.EmbedCacheSize = 10000
	}
	if rc.EmbedCacheTTL == 0 {
		rc.EmbedCacheTTL = 7200
	}
	if rc.RebuildThreshold == 0 {
		rc.RebuildThreshold = 64
	}
	if rc.MaintainSpec == "" {
		rc.MaintainSpec = "*/10 * * * *"
	}
}
