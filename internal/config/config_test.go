package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telegrab.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults fill unset fields", func(t *testing.T) {
		path := writeConfig(t, "bot_token: abc123\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.InlineLimitMiB != 50 {
			t.Errorf("expected default inline limit 50, got %d", cfg.InlineLimitMiB)
		}
		if cfg.DownloadDir != "downloads" {
			t.Errorf("expected default download dir, got %q", cfg.DownloadDir)
		}
		if cfg.InlineLimitBytes() != 50*1024*1024 {
			t.Errorf("unexpected inline limit bytes %d", cfg.InlineLimitBytes())
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, "bot_token: abc123\ninline_limit_mib: 20\ndownload_dir: /tmp/media\ns3:\n  bucket: artifacts\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.InlineLimitMiB != 20 || cfg.DownloadDir != "/tmp/media" || cfg.S3.Bucket != "artifacts" {
			t.Errorf("file values not applied: %+v", cfg)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfig(t, "bot_token: fromfile\n")
		t.Setenv("TELEGRAB_BOT_TOKEN", "fromenv")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.BotToken != "fromenv" {
			t.Errorf("expected env token, got %q", cfg.BotToken)
		}
	})

	t.Run("durations decode from strings", func(t *testing.T) {
		path := writeConfig(t, "bot_token: abc\nfetch_timeout: 90s\ns3:\n  bucket: b\n  link_expiry: 48h\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if time.Duration(cfg.FetchTimeout) != 90*time.Second {
			t.Errorf("expected 90s fetch timeout, got %v", time.Duration(cfg.FetchTimeout))
		}
		if time.Duration(cfg.S3.LinkExpiry) != 48*time.Hour {
			t.Errorf("expected 48h link expiry, got %v", time.Duration(cfg.S3.LinkExpiry))
		}
	})

	t.Run("bare integer durations mean seconds", func(t *testing.T) {
		path := writeConfig(t, "bot_token: abc\nfetch_timeout: 60\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if time.Duration(cfg.FetchTimeout) != 60*time.Second {
			t.Errorf("expected 60s fetch timeout, got %v", time.Duration(cfg.FetchTimeout))
		}
	})

	t.Run("unparseable duration fails", func(t *testing.T) {
		path := writeConfig(t, "bot_token: abc\nfetch_timeout: soon\n")
		if _, err := Load(path); err == nil {
			t.Error("expected an error for an unparseable duration")
		}
	})

	t.Run("missing token fails", func(t *testing.T) {
		path := writeConfig(t, "download_dir: x\n")
		t.Setenv("TELEGRAB_BOT_TOKEN", "")
		if _, err := Load(path); err == nil {
			t.Error("expected an error for a missing bot token")
		}
	})

	t.Run("invalid inline limit fails", func(t *testing.T) {
		path := writeConfig(t, "bot_token: abc\ninline_limit_mib: -1\n")
		if _, err := Load(path); err == nil {
			t.Error("expected an error for a non-positive inline limit")
		}
	})
}
