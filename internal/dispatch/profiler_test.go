package dispatch

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

func newTestProfiler(t *testing.T) (*Profiler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewProfiler(rdb, nil), mr
}

func TestProfiler_UnknownToolHasOnlineZeroProfile(t *testing.T) {
	p, _ := newTestProfiler(t)

	prof, err := p.GetProfile(context.Background(), "brave_search")
	require.NoError(t, err)
	assert.Equal(t, "brave_search", prof.Tool)
	assert.Equal(t, statusOnline, prof.Status)
	assert.Zero(t, prof.TotalSuccesses)
}

func TestProfiler_RecordsSuccessAndFailure(t *testing.T) {
	p, mr := newTestProfiler(t)
	ctx := context.Background()

	p.RecordCall(ctx, tools.ToolCallResult{
		ToolName:  "brave_search",
		Source:    tools.SourceHostedPrimary,
		ElapsedMs: 100,
		Outcome:   tools.Succeeded("ok"),
	})
	prof, err := p.GetProfile(ctx, "brave_search")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prof.TotalSuccesses)
	assert.Equal(t, int64(100), prof.AvgLatencyMS, "first sample seeds the average")
	assert.Equal(t, string(tools.SourceHostedPrimary), prof.LastSource)

	p.RecordCall(ctx, tools.ToolCallResult{
		ToolName:  "brave_search",
		Source:    tools.SourceLocal,
		ElapsedMs: 200,
		Outcome:   tools.Succeeded("ok"),
	})
	prof, err = p.GetProfile(ctx, "brave_search")
	require.NoError(t, err)
	assert.Equal(t, int64(110), prof.AvgLatencyMS)

	p.RecordCall(ctx, tools.ToolCallResult{
		ToolName: "brave_search",
		Source:   tools.SourceLocal,
		Outcome:  tools.Outcome{Kind: tools.KindAdapterCallFailed, Message: "boom"},
	})
	prof, err = p.GetProfile(ctx, "brave_search")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prof.TotalFailures)
	assert.Equal(t, statusDegraded, prof.Status)
	assert.InDelta(t, 1.0/3.0, prof.ErrorRate, 1e-9)
	assert.True(t, mr.Exists("toolstats:brave_search"))
}

func TestProfiler_SkipsCallsThatNeverReachedAnAdapter(t *testing.T) {
	p, mr := newTestProfiler(t)

	p.RecordCall(context.Background(), tools.ToolCallResult{
		ToolName: "nope",
		Outcome:  tools.Outcome{Kind: tools.KindUnknownTool, Message: "unknown tool"},
	})
	assert.False(t, mr.Exists("toolstats:nope"))
}

func TestProfiler_CountsFallbacks(t *testing.T) {
	p, _ := newTestProfiler(t)
	ctx := context.Background()

	p.RecordFallback(ctx, "brave_search", tools.SourceHostedPrimary, tools.SourceLocal)
	p.RecordFallback(ctx, "Brave-Search", tools.SourceHostedPrimary, tools.SourceLocal)

	prof, err := p.GetProfile(ctx, "brave_search")
	require.NoError(t, err)
	assert.Equal(t, int64(2), prof.TotalFallbacks)
}

func TestProfiler_RedisDownDoesNotPanic(t *testing.T) {
	p, mr := newTestProfiler(t)
	mr.Close()

	assert.NotPanics(t, func() {
		p.RecordCall(context.Background(), tools.ToolCallResult{
			ToolName: "calculate",
			Source:   tools.SourceLocal,
			Outcome:  tools.Succeeded(1),
		})
	})
}
