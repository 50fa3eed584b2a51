// In file: cmd/gateway/services.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/tool-gateway/internal/dispatch"
	"github.com/dileep-u-k/tool-gateway/internal/gateway"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

// services is everything below the AI backend: the catalogue and the machinery
// that executes it. Both serve and the tools commands build one.
type services struct {
	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	adapters   []transport.Adapter
	metrics    *dispatch.Metrics
	promReg    *prometheus.Registry
	// profiler is nil when REDIS_ADDR is unset or unreachable.
	profiler *dispatch.Profiler
	closers  []func() error
}

func buildServices(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*services, error) {
	s := &services{promReg: prometheus.NewRegistry()}
	s.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = dispatch.NewMetrics(s.promReg)
	recorders := []dispatch.Recorder{s.metrics}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable; tool statistics disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			s.profiler = dispatch.NewProfiler(rdb, logger)
			recorders = append(recorders, s.profiler)
			s.closers = append(s.closers, rdb.Close)
			logger.Info("tool statistics enabled", "addr", cfg.RedisAddr)
		}
	}

	s.registry = tools.NewRegistry(cfg.Aliases)
	local := transport.NewLocal(logger, nil)
	s.adapters = append(s.adapters, local)

	executors := []tools.ToolExecutor{
		tools.NewCalculatorTool(),
		tools.NewWeatherTool(cfg.WeatherURL),
	}
	if cfg.NewsAPIKey != "" {
		news, err := tools.NewNewsTool(cfg.NewsAPIKey, cfg.NewsAPIURL)
		if err != nil {
			return nil, err
		}
		executors = append(executors, news)
	}

	var search tools.ToolExecutor
	if cfg.BraveAPIKey != "" {
		st, err := tools.NewSearchTool(cfg.BraveAPIKey, cfg.BraveSearchURL)
		if err != nil {
			return nil, err
		}
		search = st
	}

	hosted := make([]*transport.Hosted, 0, len(cfg.Hosted))
	for _, hc := range cfg.Hosted {
		h := transport.NewHosted(hc, logger)
		h.OnStateChange = s.metrics.SetConnected
		hosted = append(hosted, h)
		s.adapters = append(s.adapters, h)
	}

	s.dispatcher = dispatch.New(s.registry, s.adapters, dispatch.Options{
		CallTimeout:    cfg.Dispatch.CallTimeout,
		ProbeTimeout:   cfg.Dispatch.ProbeTimeout,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
		Logger:         logger,
		Recorders:      recorders,
	})

	err := gateway.BuildCatalog(ctx, s.registry, local, executors, hosted, gateway.CatalogOptions{
		Policies:     cfg.Policies,
		Search:       search,
		ProbeTimeout: cfg.Dispatch.ProbeTimeout,
		Logger:       logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// stats returns the profiler as a handler dependency, or a nil interface.
func (s *services) stats() gateway.StatsSource {
	if s.profiler == nil {
		return nil
	}
	return s.profiler
}

func (s *services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
