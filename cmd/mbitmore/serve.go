package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/mbitmore/internal/board"
	"github.com/srg/mbitmore/internal/groutine"
	"github.com/srg/mbitmore/internal/service"
	"github.com/srg/mbitmore/internal/transport/goble"
	"github.com/srg/mbitmore/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the characteristic service over BLE",
	Long: `Advertise the micro:bit More service on the host Bluetooth controller
and serve a simulated board to the central that connects.

Settings come from the YAML file given with --config; flags override it.
Stop with Ctrl+C.`,
	Example: `  mbitmore serve
  mbitmore serve --name mbit --interval 20ms
  mbitmore serve --config mbitmore.yaml --hci 1`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveName       string
	serveHCI        int
	serveInterval   time.Duration
	servePolicy     string
	serveAnimate    bool
)

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.Flags().StringVarP(&serveName, "name", "n", "", "Advertised device name")
	cmd.Flags().IntVar(&serveHCI, "hci", 0, "HCI device id (Linux only)")
	cmd.Flags().DurationVarP(&serveInterval, "interval", "i", 0, "Periodic update interval")
	cmd.Flags().StringVarP(&servePolicy, "policy", "p", "", "Notify policy (changed, always)")
	cmd.Flags().BoolVar(&serveAnimate, "animate", true, "Move the simulated board readings on every tick")
}

// serveConfig loads the file (or defaults) and applies the flags that were set.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.DeviceName = serveName
	}
	if flags.Changed("hci") {
		cfg.HCIDevice = serveHCI
	}
	if flags.Changed("interval") {
		cfg.TickInterval = serveInterval
	}
	if flags.Changed("policy") {
		cfg.NotifyPolicy = servePolicy
	}
	if lvl, _ := flags.GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg.Level())
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	table, err := cfg.Table()
	if err != nil {
		return err
	}

	opts := board.DefaultOptions()
	opts.JournalSize = cfg.JournalSize
	b, err := board.New(opts, logger)
	if err != nil {
		return err
	}

	svc := service.New(table, b, logger, service.WithPolicy(cfg.Policy()))
	adapter := goble.NewAdapter(table, svc, logger)
	svc.SetTransport(adapter)

	dev, err := goble.DeviceFactory(cfg.HCIDevice)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoController, err)
	}
	defer func() {
		if stopErr := dev.Stop(); stopErr != nil {
			logger.WithError(stopErr).Warn("Failed to stop BLE device")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveAnimate {
		groutine.Go(ctx, "board-animation", func(ctx context.Context) {
			animate(ctx, b, cfg.TickInterval)
		})
	}
	updates := svc.Start(ctx, cfg.TickInterval)

	logger.WithFields(logrus.Fields{
		"name":     cfg.DeviceName,
		"hci":      cfg.HCIDevice,
		"interval": cfg.TickInterval,
		"policy":   string(cfg.Policy()),
	}).Info("Serving")

	serveErr := adapter.Serve(ctx, dev, cfg.DeviceName)
	stop()

	return errors.Join(serveErr, <-updates)
}

func animate(ctx context.Context, b *board.Board, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Animate(step)
		}
	}
}
