package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"famtree/internal/config"
	"famtree/internal/logging"
	"famtree/internal/render"
	"famtree/internal/session"
)

var (
	// Global flags
	verbose    bool
	configPath string
	engineName string
	styleName  string
	factsPath  string
	once       bool

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "famtree",
	Short: "famtree - query a family tree of parent facts",
	Long: `famtree answers family-relationship questions from a small Datalog
fact base of parent facts and rules for grandparent, uncle, sibling and children.

Run without arguments to start the interactive prompt: type a name, get
that person's family report. End input (Ctrl-D) to quit.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose console logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVar(&engineName, "engine", "", "Query engine: native or mangle (default from config)")
	rootCmd.PersistentFlags().StringVar(&styleName, "style", "", "Output style: terminal, html or plain (default from config)")
	rootCmd.PersistentFlags().StringVar(&factsPath, "facts", "", "YAML file of parent facts replacing the built-in tree")
	rootCmd.PersistentFlags().BoolVar(&once, "once", false, "Exit after the first report")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup builds the console logger, loads config and applies flag overrides.
func setup(cmd *cobra.Command, args []string) error {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if engineName != "" {
		cfg.Engine = engineName
	}
	if styleName != "" {
		cfg.Render.Style = styleName
	}
	if factsPath != "" {
		cfg.FactsFile = factsPath
	}
	if once {
		cfg.Session.Loop = config.LoopOnce
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	err = logging.Initialize(logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.IsJSON(),
		Categories: cfg.Logging.Categories,
		MaxFiles:   cfg.Logging.MaxFiles,
	})
	if err != nil {
		logger.Warn("File logging disabled", zap.Error(err))
	} else if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit logging disabled", zap.Error(err))
	}

	logger.Debug("Configuration loaded",
		zap.String("config", configPath),
		zap.String("engine", cfg.Engine),
		zap.String("style", cfg.Render.Style),
		zap.String("loop", cfg.Session.Loop))
	logging.Boot("famtree %s: engine=%s style=%s loop=%s", cmd.Name(), cfg.Engine, cfg.Render.Style, cfg.Session.Loop)
	return nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
}

func newPrinter(cmd *cobra.Command) (*render.Printer, error) {
	out := cmd.OutOrStdout()
	r, err := render.New(cfg.Render.Style, out)
	if err != nil {
		return nil, err
	}
	return render.NewPrinter(out, r), nil
}

func sessionConfig() (session.Config, error) {
	loop, err := session.ParseLoop(cfg.Session.Loop)
	if err != nil {
		return session.Config{}, err
	}
	scfg := session.DefaultConfig()
	scfg.Loop = loop
	scfg.Prompt = cfg.Session.Prompt
	return scfg, nil
}

// runInteractive starts the prompt loop on stdin. An interrupt ends the
// session the same way EOF does.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	return guard("interactive session", func() error {
		err := interactive(ctx, cmd)
		if errors.Is(err, context.Canceled) {
			logger.Debug("Session interrupted")
			logging.Session("Session interrupted: %v", err)
			return nil
		}
		return err
	})
}

func interactive(ctx context.Context, cmd *cobra.Command) error {
	engine, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	scfg, err := sessionConfig()
	if err != nil {
		return err
	}

	s := session.New(engine, cmd.InOrStdin(), printer, nil, scfg)
	logger.Debug("Session started", zap.String("session", s.ID()))
	return s.Run(ctx)
}
