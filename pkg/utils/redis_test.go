package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfig_WithDefaults(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if cfg.DialTimeout <= 0 || cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 {
		t.Fatalf("expected timeout defaults, got %+v", cfg)
	}
	if cfg.PoolSize <= 0 {
		t.Fatalf("expected pool size default, got %d", cfg.PoolSize)
	}
	if cfg.PingTimeout != 2*time.Second {
		t.Fatalf("expected ping timeout default, got %v", cfg.PingTimeout)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
}
