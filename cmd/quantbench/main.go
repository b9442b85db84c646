package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/logger"
	"github.com/newthinker/quantbench/internal/metrics"
)

var (
	cfgFile string
	debug   bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "quantbench",
	Short: "quantbench - bar-by-bar strategy backtesting lab",
	Long: `quantbench replays trading strategies over stored OHLCV bars with a
simulated cash account, then grades the result with statistical and
narrative diagnostics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
}

// withLab handles common config, logger and lab setup and teardown.
func withLab(reg *metrics.Registry, fn func(lab *app.Lab, cfg *config.Config, log *zap.Logger) error) error {
	log := logger.Must(debug)
	defer log.Sync()

	if logFile != "" {
		level := zapcore.InfoLevel
		if debug {
			level = zapcore.DebugLevel
		}
		teed, closeFile, err := logger.WithFile(log, logFile, level)
		if err != nil {
			return err
		}
		defer closeFile()
		log = teed
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults and environment")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var opts []app.Option
	if reg != nil {
		opts = append(opts, app.WithMetrics(reg))
	}
	lab, err := app.New(cfg, log, opts...)
	if err != nil {
		return err
	}
	defer lab.Close()

	return fn(lab, cfg, log)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
