package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.ErrorContains(t, err, "not configured")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis url")
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, Config{URL: "redis://127.0.0.1:1/0"})
	assert.ErrorContains(t, err, "redis ping")
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
