// In file: internal/dispatch/profiler.go
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

const (
	statusOnline   = "online"
	statusDegraded = "degraded"

	// latencyAlpha weights the newest sample in the moving latency average.
	latencyAlpha = 0.1
)

// ToolProfile tracks reliability and latency of one tool across calls.
type ToolProfile struct {
	Tool           string    `json:"tool" redis:"tool"`
	AvgLatencyMS   int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status         string    `json:"status" redis:"status"`
	ErrorRate      float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures  int64     `json:"total_failures" redis:"total_failures"`
	TotalFallbacks int64     `json:"total_fallbacks" redis:"total_fallbacks"`
	LastSource     string    `json:"last_source" redis:"last_source"`
	LastCall       time.Time `json:"last_call" redis:"last_call"`
}

// Profiler persists per-tool statistics in Redis hashes keyed toolstats:<name>.
// Write failures are logged and never affect the call being recorded.
type Profiler struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ Recorder = (*Profiler)(nil)

func NewProfiler(rdb *redis.Client, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Profiler{rdb: rdb, logger: logger}
}

func (p *Profiler) profileKey(tool string) string {
	return fmt.Sprintf("toolstats:%s", tools.Canonical(tool))
}

// GetProfile returns the stored profile, or a zero profile with status online
// when the tool has never been called.
func (p *Profiler) GetProfile(ctx context.Context, tool string) (*ToolProfile, error) {
	data, err := p.rdb.HGetAll(ctx, p.profileKey(tool)).Result()
	if err != nil {
		return nil, err
	}

	profile := &ToolProfile{Tool: tools.Canonical(tool), Status: statusOnline}
	if len(data) == 0 {
		return profile, nil
	}
	profile.AvgLatencyMS, _ = strconv.ParseInt(data["avg_latency_ms"], 10, 64)
	if s := data["status"]; s != "" {
		profile.Status = s
	}
	profile.ErrorRate, _ = strconv.ParseFloat(data["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(data["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(data["total_failures"], 10, 64)
	profile.TotalFallbacks, _ = strconv.ParseInt(data["total_fallbacks"], 10, 64)
	profile.LastSource = data["last_source"]
	profile.LastCall, _ = time.Parse(time.RFC3339Nano, data["last_call"])
	return profile, nil
}

// RecordCall folds a settled result into the tool's profile. Calls rejected
// before any adapter was tried (unknown tool, invalid arguments) are skipped.
func (p *Profiler) RecordCall(ctx context.Context, res tools.ToolCallResult) {
	if res.Source == "" {
		return
	}
	if res.Outcome.Success {
		p.updateOnSuccess(ctx, res)
	} else {
		p.updateOnFailure(ctx, res)
	}
}

// RecordFallback counts hand-offs from one adapter to the next.
func (p *Profiler) RecordFallback(ctx context.Context, tool string, from, to tools.Source) {
	if err := p.rdb.HIncrBy(ctx, p.profileKey(tool), "total_fallbacks", 1).Err(); err != nil {
		p.logger.Warn("recording fallback failed", "tool", tool, "from", from, "to", to, "error", err)
	}
}

func (p *Profiler) updateOnSuccess(ctx context.Context, res tools.ToolCallResult) {
	key := p.profileKey(res.ToolName)

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		next := res.ElapsedMs
		if err != redis.Nil {
			prev, _ := strconv.ParseInt(current, 10, 64)
			next = int64(latencyAlpha*float64(res.ElapsedMs) + (1.0-latencyAlpha)*float64(prev))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", next)
			return nil
		})
		return err
	}, key)
	if err != nil {
		p.logger.Warn("updating tool latency failed", "tool", res.ToolName, "error", err)
	}

	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HSet(ctx, key, "status", statusOnline, "last_source", string(res.Source), "last_call", time.Now().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		p.logger.Warn("tool success update failed", "tool", res.ToolName, "error", err)
		return
	}

	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.setErrorRate(ctx, key, successes.Val(), totalFailures)
}

func (p *Profiler) updateOnFailure(ctx context.Context, res tools.ToolCallResult) {
	key := p.profileKey(res.ToolName)

	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "status", statusDegraded, "last_source", string(res.Source), "last_call", time.Now().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		p.logger.Warn("tool failure update failed", "tool", res.ToolName, "error", err)
		return
	}

	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.setErrorRate(ctx, key, totalSuccesses, failures.Val())
}

func (p *Profiler) setErrorRate(ctx context.Context, key string, successes, failures int64) {
	total := successes + failures
	if total == 0 {
		return
	}
	if err := p.rdb.HSet(ctx, key, "error_rate", float64(failures)/float64(total)).Err(); err != nil {
		p.logger.Warn("updating error rate failed", "key", key, "error", err)
	}
}
