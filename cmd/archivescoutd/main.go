package main

import (
	"context"
	"net/http"
	"time"

	"archivescout/lib/capturelog"
	capturelogdb "archivescout/lib/capturelog/db"
	"archivescout/lib/configutil"
	configlibsql "archivescout/lib/configutil/libsql"
	"archivescout/lib/serviceutil"
	"archivescout/lib/telemetry"
	"archivescout/lib/wayback"
	"archivescout/services/resolver"
)

type Config struct {
	Port    int `json:"port"`
	Archive struct {
		AvailabilityEndpoint string  `json:"availability_endpoint"`
		CdxEndpoint          string  `json:"cdx_endpoint"`
		ReplayBase           string  `json:"replay_base"`
		TimeoutSeconds       int     `json:"timeout_seconds"`
		RequestsPerSecond    float64 `json:"requests_per_second"`
		BypassCdn            bool    `json:"bypass_cdn"`
	} `json:"archive"`
	// optional, disables the research log when absent
	Database configlibsql.Struct `json:"database"`
	Verbose  bool                `json:"verbose"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Port == 0 {
		config.Port = 8220
	}

	telemetry.InitSlog(config.Verbose)
	t, err := telemetry.SetupFromEnv(ctx, "archivescoutd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	client := wayback.NewClient(wayback.ClientOptions{
		AvailabilityEndpoint: config.Archive.AvailabilityEndpoint,
		CdxEndpoint:          config.Archive.CdxEndpoint,
		ReplayBase:           config.Archive.ReplayBase,
		Timeout:              time.Duration(config.Archive.TimeoutSeconds) * time.Second,
		RequestsPerSecond:    config.Archive.RequestsPerSecond,
		BypassCDN:            config.Archive.BypassCdn,
	})

	var store *capturelog.Store
	if config.Database.File != "" || config.Database.Url != "" {
		db, err := config.Database.OpenDB()
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		_, err = db.ExecContext(ctx, capturelogdb.Schema)
		if err != nil {
			serviceutil.Fatal("failed to apply schema", err)
		}
		s := capturelog.NewStore(db)
		store = &s
	}

	mux := http.NewServeMux()
	resolver.NewService(client, store).Register(mux)
	go serviceutil.StartHttpServer(config.Port, mux)

	<-ctx.Done()
}
