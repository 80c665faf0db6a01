package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.Equal("localhost", cfg.Host)
	assert.Equal(9000, cfg.Port)
	assert.Equal("gpucatalog", cfg.Database)
	assert.Equal("default", cfg.Username)
	assert.False(cfg.Debug)
}

func TestNewStoreFromAddrRejectsMalformedAddress(t *testing.T) {
	assert := assert.New(t)

	for _, addr := range []string{"", "clickhouse.internal", "host:"} {
		_, err := NewStoreFromAddr(addr)
		assert.Error(err, "address %q", addr)
		assert.Contains(err.Error(), "malformed clickhouse address")
	}
}

func TestBoolToUInt8(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint8(1), boolToUInt8(true))
	assert.Equal(uint8(0), boolToUInt8(false))
}
