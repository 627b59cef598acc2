// Package config loads the notesearch configuration file.
//
// Resolution order per value: environment variable, then config file, then
// built-in default. The config file is YAML; a missing file is not an
// error, everything has a default.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Built-in defaults.
const (
	DefaultNodeDBPath  = "~/.notesearch/nodes.db"
	DefaultIndexDBPath = "~/.notesearch/index.db"

	DefaultHighlightPre  = `<em class="search-keyword">`
	DefaultHighlightPost = `</em>`
	DefaultEllipsis      = "..."

	DefaultPageSize      = 10
	DefaultMaxPageSize   = 100
	DefaultMaxRecommend  = 5
	DefaultSnippetTokens = 24
	DefaultTokenizer     = "porter unicode61"
)

// defaultStopwords covers high-frequency English function words; CJK text
// needs no stopword list since the substring fallback matches it verbatim.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if",
	"in", "into", "is", "it", "no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these", "they", "this",
	"to", "was", "will", "with",
}

// StoreConfig selects and parameterizes the node store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "mongo".
	Driver        string `yaml:"driver"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// SearchConfig holds index and ranking knobs.
type SearchConfig struct {
	DefaultPageSize int      `yaml:"default_page_size"`
	MaxPageSize     int      `yaml:"max_page_size"`
	MaxRecommend    int      `yaml:"max_recommend"`
	Tokenizer       string   `yaml:"tokenizer"`
	HighlightPre    string   `yaml:"highlight_pre"`
	HighlightPost   string   `yaml:"highlight_post"`
	Ellipsis        string   `yaml:"highlight_ellipsis"`
	SnippetTokens   int      `yaml:"snippet_tokens"`
	Stopwords       []string `yaml:"stopwords"`
}

// Config is the full notesearch configuration.
type Config struct {
	NodeDBPath  string       `yaml:"db_path"`
	IndexDBPath string       `yaml:"index_path"`
	Store       StoreConfig  `yaml:"store"`
	Search      SearchConfig `yaml:"search"`
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".notesearch", "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		NodeDBPath:  ExpandPath(DefaultNodeDBPath),
		IndexDBPath: ExpandPath(DefaultIndexDBPath),
		Store: StoreConfig{
			Driver:        "sqlite",
			MongoDatabase: "notesearch",
		},
		Search: SearchConfig{
			DefaultPageSize: DefaultPageSize,
			MaxPageSize:     DefaultMaxPageSize,
			MaxRecommend:    DefaultMaxRecommend,
			Tokenizer:       DefaultTokenizer,
			HighlightPre:    DefaultHighlightPre,
			HighlightPost:   DefaultHighlightPost,
			Ellipsis:        DefaultEllipsis,
			SnippetTokens:   DefaultSnippetTokens,
			Stopwords:       append([]string(nil), defaultStopwords...),
		},
	}
}

// Load reads the config file at path (or the default location when path is
// empty), layered over Default and under environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: defaults + env.
	case err != nil:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.NodeDBPath = ExpandPath(cfg.NodeDBPath)
	cfg.IndexDBPath = ExpandPath(cfg.IndexDBPath)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NOTESEARCH_DB_PATH"); v != "" {
		cfg.NodeDBPath = v
	}
	if v := os.Getenv("NOTESEARCH_INDEX_PATH"); v != "" {
		cfg.IndexDBPath = v
	}
	if v := os.Getenv("NOTESEARCH_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("NOTESEARCH_MONGO_URI"); v != "" {
		cfg.Store.MongoURI = v
	}
	if v := os.Getenv("NOTESEARCH_MONGO_DATABASE"); v != "" {
		cfg.Store.MongoDatabase = v
	}
}

func validate(cfg Config) error {
	switch cfg.Store.Driver {
	case "sqlite":
	case "mongo":
		if cfg.Store.MongoURI == "" {
			return fmt.Errorf("store driver mongo requires mongo_uri")
		}
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Search.DefaultPageSize > cfg.Search.MaxPageSize {
		return fmt.Errorf("default_page_size %d exceeds max_page_size %d",
			cfg.Search.DefaultPageSize, cfg.Search.MaxPageSize)
	}
	return nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
