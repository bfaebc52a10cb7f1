package config

import (
	"fmt"
	"log"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "JARGONRAG"

// Graph store backends
const (
	BackendNeo4j    = "neo4j"
	BackendPostgres = "postgres"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogFile     string `envconfig:"LOG_FILE"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	GraphBackend string `envconfig:"GRAPH_BACKEND" default:"neo4j"`
	Index        string `envconfig:"INDEX" default:"note_embeddings"`

	Neo4jURI      string `envconfig:"NEO4J_URI" default:"neo4j://localhost:7687"`
	Neo4jUser     string `envconfig:"NEO4J_USER" default:"neo4j"`
	Neo4jPass     string `envconfig:"NEO4J_PASS"`
	Neo4jDatabase string `envconfig:"NEO4J_DATABASE"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	LLMBaseURL          string `envconfig:"LLM_BASE_URL" default:"http://localhost:11434/v1"`
	LLMAPIKey           string `envconfig:"LLM_API_KEY" default:"ollama"`
	Model               string `envconfig:"MODEL" default:"llama3"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
	ContextWindow       int    `envconfig:"MODEL_CONTEXT_WINDOW" default:"8192"`
	Tokenizer           string `envconfig:"TOKENIZER" default:"cl100k_base"`

	JargonThreshold      float64 `envconfig:"JARGON_THRESHOLD" default:"0.5"`
	SemanticTopK         int     `envconfig:"SEMANTIC_TOP_K" default:"7"`
	JargonTopK           int     `envconfig:"JARGON_TOP_K" default:"7"`
	FilterAttempts       int     `envconfig:"FILTER_ATTEMPTS" default:"3"`
	PromptOverheadTokens int     `envconfig:"PROMPT_OVERHEAD_TOKENS" default:"200"`

	VaultDir      string `envconfig:"VAULT_DIR"`
	VaultS3Bucket string `envconfig:"VAULT_S3_BUCKET"`
	VaultS3Prefix string `envconfig:"VAULT_S3_PREFIX"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints that struct tags cannot express
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphBackend, validation.Required, validation.In(BackendNeo4j, BackendPostgres)),
		validation.Field(&c.Index, validation.Required),
		validation.Field(&c.Neo4jURI, validation.When(c.GraphBackend == BackendNeo4j, validation.Required)),
		validation.Field(&c.DatabaseURL, validation.When(c.GraphBackend == BackendPostgres, validation.Required)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.ContextWindow, validation.Required, validation.Min(1)),
		validation.Field(&c.EmbeddingDimensions, validation.Min(0)),
		validation.Field(&c.JargonThreshold, validation.Min(0.0)),
		validation.Field(&c.SemanticTopK, validation.Min(0)),
		validation.Field(&c.JargonTopK, validation.Min(0)),
		validation.Field(&c.FilterAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.PromptOverheadTokens, validation.Min(0)),
	)
}

// EmbeddingModelName falls back to the chat model, as a single Ollama model usually serves both
func (c *Config) EmbeddingModelName() string {
	if c.EmbeddingModel != "" {
		return c.EmbeddingModel
	}
	return c.Model
}

func (c *Config) HasS3() bool {
	return c.VaultS3Bucket != ""
}

func (c *Config) HasS3Credentials() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasVaultDir() bool {
	return c.VaultDir != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) UsesPostgres() bool {
	return c.GraphBackend == BackendPostgres
}
