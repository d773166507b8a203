package logger

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n"))
}

func TestInitialize_JSON(t *testing.T) {
	out := &syncBuffer{}
	Initialize(Config{Level: "info", Format: "json", Output: out})

	Debug("hidden")
	Info("Order created", Fields{"order_number": "PH-1"})

	lines := out.lines()
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Order created", entry["message"])
	assert.Equal(t, "PH-1", entry["order_number"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestInitialize_ConcurrentWithGet(t *testing.T) {
	out := &syncBuffer{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Initialize(Config{Level: "warn", Format: "json", Output: out})
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Get())
		}()
	}
	wg.Wait()

	Initialize(Config{Level: "warn", Format: "json", Output: out})
	Warn("Low stock", Fields{"product_id": 7})
	assert.Contains(t, string(out.lines()[len(out.lines())-1]), "Low stock")
}
