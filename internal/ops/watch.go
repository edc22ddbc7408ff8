package ops

import (
	"context"
	"os"
	"time"

	"github.com/yanun0323/logs"
)

// Watch polls the mtime of path and calls onChange with every config that
// loads and validates after a modification. Invalid edits are logged and skipped.
func Watch(ctx context.Context, path string, interval time.Duration, onChange func(Config)) {
	if interval <= 0 || path == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			cfg, err := Load(path)
			if err != nil {
				logs.Errorf("config reload failed, err: %+v", err)
				continue
			}
			onChange(cfg)
			logs.Infof("config reloaded: %s", path)
		}
	}
}
