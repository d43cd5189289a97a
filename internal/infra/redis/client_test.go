package redis

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestTrialKey(t *testing.T) {
	c := newClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), Config{KeyPrefix: "s2p:"})
	defer c.Close()

	if got := c.trialKey("batch/a.jpg"); got != "s2p:trial:batch/a.jpg" {
		t.Errorf("unexpected key %s", got)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("expected default ttl, got %v", c.ttl)
	}

	c2 := newClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), Config{TTL: time.Minute})
	defer c2.Close()
	if got := c2.trialKey("x"); got != "trial:x" || c2.ttl != time.Minute {
		t.Errorf("unexpected key/ttl %s %v", got, c2.ttl)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not-a-url"}); err == nil {
		t.Errorf("expected parse error")
	}
}
