package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/config"
)

func NewKVFromConfig(ctx context.Context, cfg config.Config) (KV, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.StorageMode))
	switch mode {
	case "", "memory":
		return NewMemoryKV(), nil
	case "file":
		return NewFileKV(cfg.StorageFilePath)
	case "postgres":
		return NewPostgresKV(ctx, cfg)
	default:
		return nil, fmt.Errorf("invalid STORAGE_MODE: %s", cfg.StorageMode)
	}
}
