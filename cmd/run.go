package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dayuer/hipbot-go/internal/bot"
	"github.com/dayuer/hipbot-go/internal/config"
	"github.com/dayuer/hipbot-go/internal/plugins"
	"github.com/dayuer/hipbot-go/internal/redis"
	"github.com/dayuer/hipbot-go/internal/telemetry"
)

var runInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start polling the configured rooms",
	Long: `Start the bot: resolve rooms and identity, then poll every room on a
fixed interval, dispatching new messages to the enabled plugins.
Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func init() {
	runCmd.Flags().DurationVarP(&runInterval, "interval", "i", 0, "poll interval (overrides bot.pollInterval)")
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runInterval > 0 {
		cfg.Bot.PollInterval = runInterval
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	shutdownTracing, err := telemetry.InitTracing(cfg.Telemetry.OTLPEndpoint, "hipbot", Version)
	if err != nil {
		logger.Warn("tracing initialization failed", slog.Any("err", err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.New(makeClient(cfg.Chat), cfg.Bot.Username, cfg.Bot.Rooms,
		bot.WithInterval(cfg.Bot.PollInterval),
		bot.WithLogger(logger),
		bot.WithMetrics(telemetry.NewMetrics(prometheus.DefaultRegisterer)),
	)

	var pub plugins.Publisher
	if cfg.Plugins.Relay {
		rc, err := redis.Connect(ctx, redis.Config{URL: cfg.Redis.URL, Password: cfg.Redis.Password})
		if err != nil {
			return err
		}
		pub = rc
		defer func() {
			if err := rc.Close(); err != nil {
				logger.Warn("redis close failed", slog.Any("err", err))
			}
		}()
	}
	if err := registerPlugins(b, cfg.Plugins, cfg.Redis.Channel, pub, time.Now); err != nil {
		return err
	}

	if cfg.Telemetry.MetricsAddr != "" {
		srv := newMetricsServer(cfg.Telemetry.MetricsAddr, b)
		go func() {
			logger.Info("metrics server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited with error", slog.Any("err", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

// registerPlugins wires the built-in plugins enabled in cfg. pub may be nil
// when the relay is off.
func registerPlugins(b *bot.Bot, cfg config.PluginsConfig, channel string, pub plugins.Publisher, now func() time.Time) error {
	if cfg.Ping {
		b.RegisterReactive(plugins.Ping())
	}
	if cfg.Uptime {
		b.RegisterReactive(plugins.Uptime(now()))
	}
	if cfg.Relay {
		if pub == nil {
			return errors.New("relay enabled without a publisher")
		}
		if channel == "" {
			channel = redis.DefaultChannel
		}
		b.RegisterReactive(plugins.Relay(pub, channel))
	}
	for i, a := range cfg.Announcements {
		s, err := plugins.NewSchedule(a.Cron, now)
		if err != nil {
			return fmt.Errorf("announcement %d: %w", i, err)
		}
		b.RegisterNonReactive(plugins.Scheduled(s, plugins.Announce(a.Text, a.Rooms...)))
	}
	return nil
}

func newMetricsServer(addr string, b *bot.Bot) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if b.State() != bot.Running {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintln(w, b.State())
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
