// Package cli implements the photoverify command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anatolykoptev/photoverify"
	"github.com/anatolykoptev/photoverify/internal/metrics"
)

// envPrefix namespaces environment overrides: PV_ACTION_CUTOFF, PV_DUP_DISTANCE, ...
const envPrefix = "PV"

type app struct {
	v           *viper.Viper
	cfgFile     string
	verbose     bool
	format      string
	metricsFile string
	log         *slog.Logger

	// runtimes overrides the model runtimes; nil uses the built-in ones.
	runtimes []photoverify.Runtime
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree with a private viper instance.
func NewRootCommand() *cobra.Command {
	return newApp().rootCommand()
}

func newApp() *app {
	return &app{v: viper.New(), log: slog.Default()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "photoverify",
		Short: "Score report photos for relevance, authenticity and duplication",
		Long: `photoverify scores uploaded report photos.

Each score fuses model inference (or a model-free heuristic when no model
can be loaded), a perceptual-hash duplicate check against recent history,
and an EXIF capture-timestamp check into an action score with a label.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (PV_*)
3. Config file (./photoverify.yaml or ~/.photoverify/config.yaml)
4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.setupLogger(cmd.ErrOrStderr())
			return a.initConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./photoverify.yaml, then $HOME/.photoverify/config.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")
	pf.StringVarP(&a.format, "output", "o", formatJSON, "output format: json or yaml")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	if err := bindScoringFlags(root, a.v); err != nil {
		panic(err)
	}

	root.AddCommand(
		a.scoreCommand(),
		a.batchCommand(),
		a.hashCommand(),
		a.backendCommand(),
		a.configCommand(),
	)
	return root
}

func (a *app) setupLogger(w io.Writer) {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// initConfig reads the config file and environment.
func (a *app) initConfig() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
		a.log.Debug("photoverify: using config file", "path", a.v.ConfigFileUsed())
		return nil
	}

	a.v.SetConfigName("photoverify")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".photoverify"))
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	a.log.Debug("photoverify: using config file", "path", a.v.ConfigFileUsed())
	return nil
}

// session is one opened Verifier plus the optional metrics sink.
type session struct {
	verifier *photoverify.Verifier
	metrics  *metrics.ScoreMetrics
	textfile string
}

// open builds the Verifier from the effective configuration.
func (a *app) open() (*session, error) {
	s, err := loadSettings(a.v)
	if err != nil {
		return nil, err
	}
	cfg, err := s.toConfig()
	if err != nil {
		return nil, err
	}
	cfg.Logger = a.log
	cfg.Runtimes = a.runtimes

	sess := &session{textfile: a.metricsFile}
	if a.metricsFile != "" {
		m, err := metrics.NewScoreMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		m.Hooks(&cfg)
		sess.metrics = m
	}

	v, err := photoverify.New(cfg)
	if err != nil {
		return nil, err
	}
	sess.verifier = v
	return sess, nil
}

// close releases the model and flushes metrics.
func (s *session) close() error {
	err := s.verifier.Close()
	if s.metrics != nil {
		err = errors.Join(err, s.metrics.WriteTextfile(s.textfile))
	}
	return err
}
