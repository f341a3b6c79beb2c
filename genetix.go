package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"genetix/internal/cli"
	"genetix/internal/config"
	"genetix/internal/handler"
	"genetix/internal/svc"
)

var configFile = flag.String("f", "etc/genetix.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	if stop := startProfiler(cfg); stop != nil {
		defer stop()
	}

	ctx := context.Background()
	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.Store != nil {
		if err := svcCtx.Store.EnsureSchema(ctx); err != nil {
			logx.Errorf("main: ensure schema: %v", err)
		}
	}

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()
	handler.RegisterHandlers(server, svcCtx)

	if err := svcCtx.Scheduler.Bootstrap(ctx); err != nil {
		logx.Errorf("main: bootstrap failed: %v", err)
		logx.Close()
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svcCtx.Scheduler.Run(ctx); err != nil {
			logx.Errorf("main: scheduler stopped: %v", err)
		}
	}()

	go func() {
		fmt.Printf("Starting dashboard at %s:%d...\n", cfg.Host, cfg.Port)
		server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		logx.Infof("main: received %s, shutting down", sig)
		svcCtx.Scheduler.RequestShutdown()
		<-done
	case <-done:
	}
}

func startProfiler(cfg *config.Config) func() {
	if cfg.Profiling.ServerAddress == "" {
		return nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Profiling.AppName,
		ServerAddress:   cfg.Profiling.ServerAddress,
		Tags:            map[string]string{"env": cfg.Env},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logx.Errorf("main: pyroscope start failed: %v", err)
		return nil
	}
	return func() { _ = profiler.Stop() }
}
