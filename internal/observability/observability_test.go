package observability

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		logger, err := NewLogger("info", "json")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("console", func(t *testing.T) {
		logger, err := NewLogger("debug", "console")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("defaults when empty", func(t *testing.T) {
		logger, err := NewLogger("", "")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("invalid level", func(t *testing.T) {
		logger, err := NewLogger("loud", "json")
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewLogger("info", "xml")
		assert.Error(t, err)
	})
}

func TestDecisionCounters(t *testing.T) {
	c := NewDecisionCounters()
	ctx := context.Background()

	block := DecisionLabels{Decision: "block", Rule: "default-deny"}
	reported := DecisionLabels{Decision: "block", Rule: "default-deny", ReportOnly: true}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordDecision(ctx, block)
		}()
	}
	wg.Wait()
	c.RecordDecision(ctx, reported)
	c.RecordDecision(ctx, PassThrough)

	assert.Equal(t, uint64(100), c.Get(block))
	assert.Equal(t, uint64(1), c.Get(reported))

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "block/default-deny", snap[0].Key)
	assert.Equal(t, "block/default-deny/report_only", snap[1].Key)
	assert.Equal(t, "pass_through/no-policy", snap[2].Key)
}
