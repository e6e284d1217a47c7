package hooks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/crux/internal/models"
	tu "github.com/desertthunder/crux/internal/testing"
)

func TestChain(t *testing.T) {
	ctx := context.Background()
	j := &tu.Journal{}
	first, second := tu.NewHookRecorder(j), tu.NewHookRecorder(j)
	chain := Chain{first, second}

	require.NoError(t, chain.Before(ctx, models.OpCreate))
	require.NoError(t, chain.After(ctx, models.OpCreate))
	assert.Equal(t, []string{"before:CREATE", "before:CREATE", "after:CREATE", "after:CREATE"}, j.Entries())

	t.Run("first error stops", func(t *testing.T) {
		j := &tu.Journal{}
		a, b := tu.NewHookRecorder(j), tu.NewHookRecorder(j)
		boom := errors.New("boom")
		a.Fail["before:FIND"] = boom

		err := Chain{a, b}.Before(ctx, models.OpFind)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, j.Entries(), 1)
	})
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	g := ReadOnly()

	for _, op := range models.Operations() {
		err := g.Before(ctx, op)
		if op.IsWrite() {
			assert.ErrorIs(t, err, ErrDenied, op.String())
		} else {
			assert.NoError(t, err, op.String())
		}
		assert.NoError(t, g.After(ctx, op))
	}

	assert.ErrorIs(t, Deny(models.OpCount).Before(ctx, models.OpCount), ErrDenied)
	assert.NoError(t, Deny(models.OpCount).Before(ctx, models.OpPage))
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	limit := NewRateLimit(1, 1)

	require.NoError(t, limit.Before(ctx, models.OpFind))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := limit.Before(short, models.OpFind)
	assert.Error(t, err, "second call must wait longer than the deadline allows")
	assert.NoError(t, limit.After(ctx, models.OpFind))
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.InfoLevel)
	audit := NewAudit(logger)

	require.NoError(t, audit.Before(ctx, models.OpDelete))
	require.NoError(t, audit.After(ctx, models.OpDelete))
	require.NoError(t, audit.After(ctx, models.OpFind))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "operation completed"))
	assert.Contains(t, out, "op=DELETE")
	assert.NotContains(t, out, "op=FIND")
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Before(ctx, models.OpCreate))
	require.NoError(t, m.Before(ctx, models.OpCreate))
	require.NoError(t, m.After(ctx, models.OpCreate))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.started.WithLabelValues("CREATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completed.WithLabelValues("CREATE")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.started.WithLabelValues("PAGE")))
}
