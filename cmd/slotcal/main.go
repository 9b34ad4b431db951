package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"slotcal/internal/availability"
	"slotcal/internal/capture"
	"slotcal/internal/config"
	"slotcal/internal/fetch"
	busyics "slotcal/internal/ics"
	appLog "slotcal/internal/log"
	"slotcal/internal/rules"
	"slotcal/internal/sheet"
	"slotcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("slotcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"sheet", conf.SheetURL != "",
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"slot_count", len(conf.Slots),
		"ics_count", len(conf.ICS),
		"preview", conf.Preview.Enabled,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	cacheDir := "/var/lib/slotcal/cache"
	if flags.debug {
		cacheDir = "./cache/fetch"
	}
	fetcher := fetch.New(cacheDir)
	sheetSrc := sheet.NewSource(conf.SheetURL, fetcher)
	store := rules.NewStore()
	loc := resolveLocation(conf.Timezone)

	refresh := func() {
		refreshCtx, done := context.WithTimeout(ctx, 60*time.Second)
		defer done()

		rs := sheetSrc.Load(refreshCtx)

		if len(conf.ICS) > 0 {
			today := startOfDay(time.Now().In(loc))
			busy := busyics.LoadBusy(refreshCtx, fetcher, conf.ICS, busyics.ImportConfig{
				Location:    loc,
				RangeStart:  today,
				RangeEnd:    today.AddDate(0, 0, conf.HorizonDays),
				Grid:        conf.Slots,
				SlotMinutes: conf.SlotMinutes,
			})
			rs = append(rs, busy...)
		}

		store.Set(rs)
		appLog.Info("rules refreshed", "rule_count", len(rs))

		if conf.Preview.Enabled && !flags.once {
			if err := capture.BoardPNG(ctx, capture.Options{
				URL:        "http://" + conf.Listen + "/",
				OutputPath: web.PreviewPath(flags.debug),
				Width:      conf.Preview.Width,
				Height:     conf.Preview.Height,
			}); err != nil {
				appLog.Error("board preview capture failed", err)
			}
		}
	}

	// Prime the snapshot before serving anything.
	refresh()

	if flags.once {
		days := availability.Plan(store.Current().Rules, conf.Slots, time.Now().In(loc), conf.HorizonDays)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(days); err != nil {
			appLog.Error("failed to dump horizon", err)
			os.Exit(1)
		}
		return
	}

	// Periodic refresh on the configured cron schedule.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, store, flags.debug).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = server.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("slotcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/slotcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch rules, dump the resolved horizon as JSON and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local cache paths")

	flag.Parse()

	return cfg
}

func resolveLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
