package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes from either a Go duration string ("90s", "2h") or a
// bare integer, which is taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		secs, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %v", node.Value, err)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the immutable process configuration, loaded once at start.
type Config struct {
	BotToken       string   `yaml:"bot_token"`
	AdminChatID    int64    `yaml:"admin_chat_id"`
	InlineLimitMiB int64    `yaml:"inline_limit_mib"`
	DownloadDir    string   `yaml:"download_dir"`
	YtdlpPath      string   `yaml:"ytdlp_path"`
	FfmpegPath     string   `yaml:"ffmpeg_path"`
	PollTimeout    int      `yaml:"poll_timeout_seconds"`
	FetchTimeout   Duration `yaml:"fetch_timeout"` // probe, fetch and upload deadline; zero means none
	S3             S3Config `yaml:"s3"`
}

// S3Config describes the fallback upload host. An empty bucket disables
// fallback delivery entirely.
type S3Config struct {
	Bucket     string   `yaml:"bucket"`
	Prefix     string   `yaml:"prefix"`
	Profile    string   `yaml:"profile"`
	Region     string   `yaml:"region"`
	LinkExpiry Duration `yaml:"link_expiry"`
}

// InlineLimitBytes is the size threshold for direct delivery; operators set
// it with a safety margin below the transport's hard cap.
func (c *Config) InlineLimitBytes() int64 {
	return c.InlineLimitMiB * 1024 * 1024
}

func Load(filePath string) (*Config, error) {
	cfg := &Config{
		InlineLimitMiB: 50,
		DownloadDir:    "downloads",
		PollTimeout:    60,
		S3:             S3Config{LinkExpiry: Duration(24 * time.Hour)},
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}
	applyEnv(cfg)
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token not set (config bot_token or TELEGRAB_BOT_TOKEN)")
	}
	if cfg.InlineLimitMiB <= 0 {
		return nil, fmt.Errorf("inline_limit_mib must be positive")
	}
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAB_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("TELEGRAB_ADMIN_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.AdminChatID = id
		}
	}
	if v := os.Getenv("TELEGRAB_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("TELEGRAB_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
}
