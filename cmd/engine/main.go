package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/broker/angel"
	"main/internal/lifecycle"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/scheduler"
	"main/internal/scrip"
	"main/internal/server"
	"main/internal/store"
	"main/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	migrate := flag.Bool("migrate", false, "Create missing tables and exit")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Profiler.Enable {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "intraday-engine",
			ServerAddress:   cfg.Profiler.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer profiler.Stop()
	}

	pg, err := conn.New(conn.Option{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		log.Fatalf("postgres connect failed: %v", err)
	}
	defer pg.Close()

	st := store.New(pg.DB())
	if *migrate {
		if err := st.Migrate(); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
		logs.Info("migration complete")
		return
	}

	delegator := angel.NewDelegator(&http.Client{}, cfg.BrokerBaseURL, cfg.ScripMasterURL)

	catalog := scrip.NewCatalog()
	if err := catalog.Refresh(ctx, delegator.FetchScripMaster); err != nil {
		// Resolution misses until the refresher lands a snapshot; entries
		// are skipped, not blocked.
		logs.Errorf("initial scrip master load failed, err: %+v", err)
	}
	obs.SetCatalogRows(catalog.Len())
	go catalog.RunRefresher(ctx, cfg.CatalogRefresh, func(ctx context.Context) ([]model.CatalogRow, error) {
		rows, err := delegator.FetchScripMaster(ctx)
		if err == nil {
			obs.SetCatalogRows(len(rows))
		}
		return rows, err
	})

	controller := lifecycle.NewController(delegator, st)
	sched := scheduler.New(cfg, st, delegator, controller, catalog)

	srv := server.New(cfg.ListenAddr, sched)
	go func() {
		logs.Infof("control server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("control server failed, err: %+v", err)
		}
	}()

	logs.Info("engine started")
	sched.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Errorf("control server shutdown, err: %+v", err)
	}
	logs.Info("engine stopped")
}
