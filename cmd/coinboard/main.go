package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/coinboard/coinboard/internal/catalog"
	"github.com/coinboard/coinboard/internal/configs"
	"github.com/coinboard/coinboard/internal/feed"
	binanceFeed "github.com/coinboard/coinboard/internal/feed/binance"
	"github.com/coinboard/coinboard/internal/feed/simulated"
	"github.com/coinboard/coinboard/internal/models"
	"github.com/coinboard/coinboard/internal/prefs"
	"github.com/coinboard/coinboard/internal/server"
	"github.com/coinboard/coinboard/internal/store"
	"github.com/coinboard/coinboard/internal/view"
)

var (
	flagconf string

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
)

func init() {
	flag.StringVar(&flagconf, "conf", "config.json", "config path, eg: -conf config.json")
}

func main() {
	flag.Parse()

	// 加载配置
	config := &configs.Config{}
	if configFile, err := os.ReadFile(flagconf); err != nil {
		log.Warn("config file not read, using defaults", "path", flagconf, "err", err)
	} else if err := json.Unmarshal(configFile, config); err != nil {
		log.Error("Error parsing config file", "err", err)
		return
	}
	config.Defaults()

	log.Debug("Loaded config", "config", config)

	if config.Proxy != "" {
		_ = os.Setenv("HTTP_PROXY", config.Proxy)
		_ = os.Setenv("HTTPS_PROXY", config.Proxy)
		log.Debug("set proxy ok", "proxy", config.Proxy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 偏好存储
	var kv prefs.KV
	switch config.Prefs.Backend {
	case "postgres":
		pg, err := prefs.NewPostgresKV(config.Prefs.ConnStr)
		if err != nil {
			log.Error("Error creating preference storage", "err", err)
			return
		}
		defer pg.Close()
		kv = pg
	default:
		kv = prefs.NewFileKV(config.Prefs.Path)
	}
	prefManager := prefs.NewManager(kv, log)

	// 资产仓库，先播种目录再套用保存的偏好
	assetStore := store.New(catalog.Assets())
	if saved, ok := prefManager.Load(ctx); ok {
		assetStore.SetFilters(saved.Filters)
		assetStore.SetSorting(saved.Sorting)
		log.Debug("restored saved preferences")
	}

	selector := view.NewSelector(assetStore)

	// 数据源
	feeds := feed.NewManager(ctx,
		simulated.New(assetStore, log),
		binanceFeed.New(assetStore, config.Symbols, log),
	)
	if err := feeds.Switch(config.Feed); err != nil {
		log.Error("Error starting feed", "feed", config.Feed, "err", err)
		return
	}
	defer feeds.StopAll()

	// 偏好随仓库变化节流落盘
	saver := prefs.NewSaver(prefManager, func() models.Preferences {
		return models.Preferences{
			Filters: assetStore.Filters(),
			Sorting: assetStore.Sorting(),
		}
	}, prefs.DefaultSaveInterval)
	assetStore.Subscribe(saver.Notify)
	defer saver.Flush()

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	server.NewHandler(assetStore, selector, feeds, log).RegisterRoutes(router)

	httpErr := make(chan error, 1)
	go func() {
		log.Info("coinboard listening", "addr", config.ListenAddr)
		httpErr <- router.Run(config.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-httpErr:
		log.Error("HTTP server error", "err", err)
	}
}
