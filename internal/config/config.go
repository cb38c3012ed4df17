package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Worker      WorkerConfig      `yaml:"worker"`
	Loader      LoaderConfig      `yaml:"loader"`
	Server      ServerConfig      `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Debug    bool   `yaml:"debug"`
}

// DSN builds the connection string for pgdriver.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type OllamaConfig struct {
	Host                string `yaml:"host"`
	EmbeddingModel      string `yaml:"embedding_model"`
	GenerationModel     string `yaml:"generation_model"`
	EmbedTimeoutSecs    int    `yaml:"embed_timeout_secs"`
	GenerateTimeoutSecs int    `yaml:"generate_timeout_secs"`
}

func (c *OllamaConfig) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSecs) * time.Second
}

func (c *OllamaConfig) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSecs) * time.Second
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string         `yaml:"type"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func (c *QdrantConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

type RetrievalConfig struct {
	TopK         int `yaml:"top_k"`
	ContextLimit int `yaml:"context_limit"`
}

type WorkerConfig struct {
	Count               int `yaml:"count"`
	PollIntervalSecs    int `yaml:"poll_interval_secs"`
	ErrorBackoffSecs    int `yaml:"error_backoff_secs"`
	LeaseTimeoutSecs    int `yaml:"lease_timeout_secs"`
	MaxAttempts         int `yaml:"max_attempts"`
	ReclaimIntervalSecs int `yaml:"reclaim_interval_secs"`
}

func (c *WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

func (c *WorkerConfig) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffSecs) * time.Second
}

func (c *WorkerConfig) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutSecs) * time.Second
}

func (c *WorkerConfig) ReclaimInterval() time.Duration {
	return time.Duration(c.ReclaimIntervalSecs) * time.Second
}

type LoaderConfig struct {
	SourceDir        string `yaml:"source_dir"`
	ProcessedDir     string `yaml:"processed_dir"`
	ChunkSize        int    `yaml:"chunk_size"`
	ScanIntervalSecs int    `yaml:"scan_interval_secs"`
}

func (c *LoaderConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSecs) * time.Second
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses the config file, filling in defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.User == "" {
		cfg.Postgres.User = "raguser"
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = "ragdb"
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = "http://localhost:11434"
	}
	if cfg.Ollama.EmbeddingModel == "" {
		cfg.Ollama.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.Ollama.GenerationModel == "" {
		cfg.Ollama.GenerationModel = "qwen2.5-coder:latest"
	}
	if cfg.Ollama.EmbedTimeoutSecs == 0 {
		cfg.Ollama.EmbedTimeoutSecs = 30
	}
	if cfg.Ollama.GenerateTimeoutSecs == 0 {
		cfg.Ollama.GenerateTimeoutSecs = 120
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "documents"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.VectorStore.Type == "chromem" {
		if cfg.VectorStore.Chromem == nil {
			cfg.VectorStore.Chromem = &ChromemConfig{}
		}
		if cfg.VectorStore.Chromem.Path == "" {
			cfg.VectorStore.Chromem.Path = "./chromemdb"
		}
		if cfg.VectorStore.Chromem.Collection == "" {
			cfg.VectorStore.Chromem.Collection = "documents"
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.ContextLimit == 0 {
		cfg.Retrieval.ContextLimit = 1000
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 1
	}
	if cfg.Worker.PollIntervalSecs == 0 {
		cfg.Worker.PollIntervalSecs = 1
	}
	if cfg.Worker.ErrorBackoffSecs == 0 {
		cfg.Worker.ErrorBackoffSecs = 5
	}
	if cfg.Worker.LeaseTimeoutSecs == 0 {
		cfg.Worker.LeaseTimeoutSecs = 300
	}
	if cfg.Worker.MaxAttempts == 0 {
		cfg.Worker.MaxAttempts = 3
	}
	if cfg.Worker.ReclaimIntervalSecs == 0 {
		cfg.Worker.ReclaimIntervalSecs = 60
	}
	if cfg.Loader.SourceDir == "" {
		cfg.Loader.SourceDir = "./source"
	}
	if cfg.Loader.ProcessedDir == "" {
		cfg.Loader.ProcessedDir = "./processed"
	}
	if cfg.Loader.ChunkSize == 0 {
		cfg.Loader.ChunkSize = 512
	}
	if cfg.Loader.ScanIntervalSecs == 0 {
		cfg.Loader.ScanIntervalSecs = 60
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
}
