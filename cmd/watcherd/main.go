// Command watcherd runs the Cortensor node-fleet watcher: it tails
// container logs, restarts deviating or symptomatic nodes, and
// exposes a Telegram-based control surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/command"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/config"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/eventlog"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/health"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/log"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/notify"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/reputation"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/rundriver"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/selfhealth"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/supervisor"
)

var (
	logLevel    string
	logJSON     bool
	configPath  string
	envPath     string
	healthAddr  string

	version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watcherd",
		Short:   "Supervises a fleet of Cortensor consensus node containers",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON instead of console-formatted text")
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the watcher's JSON configuration")
	cmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "optional .env file to load secrets from")
	cmd.PersistentFlags().StringVar(&healthAddr, "health-addr", ":9090", "bind address for /healthz, /ready and /metrics")

	cobra.OnInitialize(initLogging)

	return cmd
}

func initLogging() {
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func run() error {
	logger := log.WithComponent("main")

	store, err := config.Load(configPath, envPath)
	if err != nil {
		log.Fatal(fmt.Sprintf("loading configuration: %v", err))
		return err
	}

	driver, err := rundriver.New()
	if err != nil {
		log.Fatal(fmt.Sprintf("connecting to container runtime: %v", err))
		return err
	}
	defer driver.Close()

	notifier, err := notify.New(store.Secrets.TelegramBotToken, store.Secrets.TelegramChatID)
	if err != nil {
		log.Fatal(fmt.Sprintf("configuring notifier: %v", err))
		return err
	}
	if err := notify.ValidateToken(notifier); err != nil {
		log.Fatal(err.Error())
		return err
	}

	events, err := eventlog.Open(store.File.WatcherLogFile)
	if err != nil {
		log.Fatal(fmt.Sprintf("opening event log: %v", err))
		return err
	}
	defer events.Close()

	var prober *reputation.Prober
	if store.File.ReputationCheckEnabled {
		prober = reputation.New(store.File.ReputationAPIBaseURL, store.File.ReputationCheckWindow)
	}

	sup := supervisor.New(driver, notifier, events, store, prober)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dockerCheck := health.NewFuncChecker("docker", func(ctx context.Context) error {
		_, err := driver.Status(ctx, store.File.Containers[0])
		if err != nil && err != rundriver.ErrNotFound {
			return err
		}
		return nil
	})
	readinessChecks := []health.Checker{dockerCheck}
	if store.File.ReputationCheckEnabled {
		// Any HTTP response (including a 404 for an address with no
		// history) proves the reputation API host is reachable; only a
		// transport-level failure should fail readiness.
		reputationCheck := health.NewHTTPChecker(store.File.ReputationAPIBaseURL).WithStatusRange(100, 599)
		readinessChecks = append(readinessChecks, reputationCheck)
	}
	healthSrv := selfhealth.New(readinessChecks...)

	go func() {
		if err := healthSrv.ListenAndServe(healthAddr); err != nil {
			logger.Warn().Err(err).Msg("self-health server stopped")
		}
	}()

	notifier.Send(notify.WatcherStarted(len(store.File.Containers)))

	deps := command.Deps{Driver: driver, Config: store}
	go notifier.RunLongPoll(ctx, func(chatID int64, text string) {
		reply := command.Dispatch(ctx, deps, text)
		notifier.Send(reply)
	})

	logger.Info().Msg("watcherd running")
	sup.Run(ctx)

	notifier.Send(notify.WatcherStopped())
	return nil
}
