package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vtreporter/internal/config"
	"vtreporter/internal/mailer"
	"vtreporter/internal/recipients"
	"vtreporter/internal/report"
	"vtreporter/internal/scheduler"
	"vtreporter/internal/sdnotify"
	"vtreporter/internal/server"
	"vtreporter/internal/storage"
	"vtreporter/internal/store"
	logx "vtreporter/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: true,
		File: logx.FileConfig{
			Enabled: cfg.Log.File != "",
			Path:    cfg.Log.File,
		},
	})
	defer logSvc.Close()

	for _, w := range cfg.Warnings {
		log.Warn("config: " + w)
	}
	log.Info("starting video transcoding reporter",
		logx.String("addr", cfg.ListenAddr),
		logx.String("schedule_mode", cfg.Schedule.Mode),
	)

	// Document store.
	db, err := store.OpenMongo(ctx, store.MongoConfig{
		DriveURI: cfg.Store.DriveURI,
		WacURI:   cfg.Store.WacURI,
		DriveDB:  cfg.Store.DriveDB,
		WacDB:    cfg.Store.WacDB,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(closeCtx)
	}()

	// Recipient list, with live reload on external edits.
	recips, err := recipients.Open(cfg.EmailsFile, recipients.List{
		Recipients: cfg.DefaultRecipients,
		BCC:        cfg.DefaultBCC,
	}, log)
	if err != nil {
		return err
	}
	go func() {
		if err := recips.Watch(ctx); err != nil {
			log.Warn("recipient file watch unavailable", logx.Err(err))
		}
	}()

	// Run history (optional).
	runs, err := storage.Open(storage.Config{Path: cfg.RunHistoryDB}, log)
	if err != nil {
		return err
	}
	if runs != nil {
		defer runs.Close()
	}

	builder := report.NewBuilder(db, db, log)
	cache := report.NewCache(builder, report.DefaultCacheTTL, log)
	cache.Start(ctx)
	defer cache.Stop()

	mail := mailer.New(mailer.Config{
		Host: cfg.Mail.Host,
		Port: cfg.Mail.Port,
		User: cfg.Mail.User,
		Pass: cfg.Mail.Pass,
		From: cfg.Mail.From,
	}, recips, log)

	job := func(ctx context.Context) (scheduler.RunInfo, error) {
		rep, err := builder.BuildEmail(ctx)
		if err != nil {
			return scheduler.RunInfo{}, err
		}
		list := recips.Get()
		if err := mail.Send(ctx, rep.HTML, rep.CSV); err != nil {
			return scheduler.RunInfo{}, err
		}
		return scheduler.RunInfo{
			RowsShown:  rep.Shown,
			Matched:    rep.Matched,
			Recipients: len(list.Recipients) + len(list.BCC),
		}, nil
	}

	sched := scheduler.New(cfg.Schedule, job, runs, log)
	if err := sched.Start(ctx); err != nil {
		// Keep serving the dashboard even with a dead schedule.
		log.Warn("scheduler is idle", logx.Err(err))
	}
	defer sched.Stop()

	srv := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		CORSOrigins:    cfg.CORSOrigins,
	}, cache, builder, sched, recips, log)

	sdnotify.Ready(log)
	sdnotify.Watchdog(ctx, log)
	defer sdnotify.Stopping(log)

	return srv.Run(ctx)
}
