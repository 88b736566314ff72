package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Detector   DetectorConfig
	Clustering ClusteringConfig
	Database   DatabaseConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Web        WebConfig
}

type DetectorConfig struct {
	URL string // face analysis server, defaults to http://localhost:8000
	Dim int    // expected embedding dimension, defaults to 512
}

type ClusteringConfig struct {
	Epsilon     float64 `yaml:"epsilon"`      // DBSCAN neighborhood radius in cosine distance
	MinSamples  int     `yaml:"min_samples"`  // DBSCAN core point threshold
	MinFaces    int     `yaml:"min_faces"`    // minimum cluster size to receive a label
	LabelPrefix string  `yaml:"label_prefix"` // provisional label prefix, e.g. Group
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, optional
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// defaults mirrors the embedded defaults.yaml layout.
type defaults struct {
	Clustering ClusteringConfig `yaml:"clustering"`
	Web        WebConfig        `yaml:"web"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL: os.Getenv("DETECTOR_URL"),
			Dim: envInt("DETECTOR_DIM", 512),
		},
		Clustering: ClusteringConfig{
			Epsilon:     envFloat("CLUSTER_EPSILON", def.Clustering.Epsilon),
			MinSamples:  envInt("CLUSTER_MIN_SAMPLES", def.Clustering.MinSamples),
			MinFaces:    envInt("CLUSTER_MIN_FACES", def.Clustering.MinFaces),
			LabelPrefix: envString("CLUSTER_LABEL_PREFIX", def.Clustering.LabelPrefix),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Web: WebConfig{
			Addr: envString("LISTEN_ADDR", def.Web.Addr),
		},
	}
}
