package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OCR    OCRConfig    `yaml:"ocr" mapstructure:"ocr"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// OCRConfig configures text recognition.
type OCRConfig struct {
	Engine             string `yaml:"engine" mapstructure:"engine"`
	Language           string `yaml:"language" mapstructure:"language"`
	TessdataDir        string `yaml:"tessdata_dir" mapstructure:"tessdata_dir"`
	TesseractPath      string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	VisionAPIKey       string `yaml:"vision_api_key" mapstructure:"vision_api_key"`
	ServiceAccountFile string `yaml:"service_account_file" mapstructure:"service_account_file"`
}

// LLMConfig configures the post-OCR rewrite step.
type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	Prompt        string `yaml:"prompt" mapstructure:"prompt"`
	WordsPerBatch int    `yaml:"words_per_batch" mapstructure:"words_per_batch"`
}

// RenderConfig configures PDF page rasterization.
type RenderConfig struct {
	DPI          int    `yaml:"dpi" mapstructure:"dpi"`
	PdfToPPMPath string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(defaultHome())

	// Environment
	v.SetEnvPrefix("PDFSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ocr.engine", "tesseract")
	v.SetDefault("ocr.language", "English (eng)")
	v.SetDefault("llm.provider", "OpenAI: gpt-4o")
	v.SetDefault("llm.words_per_batch", 1100)
	v.SetDefault("render.dpi", 300)
	v.SetDefault("render.pdftoppm_path", "pdftoppm")
	v.SetDefault("store.path", filepath.Join(defaultHome(), "runs.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".pdfscribe")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
