package main

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "0.1.0"
	GitCommit = "development"
)

// Frontend metadata reported by the version command.
const (
	frontendName   = "cQASM"
	frontendAuthor = "JvS"
)

// cli holds the flags shared by all commands and the configuration they
// resolve to.
type cli struct {
	configPath string
	logLevel   string
	cfg        *Config
}

// newRootCmd builds the command tree. A fresh tree is returned on every call
// so tests can execute commands in isolation.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "cqrun",
		Short: "Run cQASM 1.0 programs against a quantum executor",
		Long: `cqrun parses cQASM 1.0 programs and executes them bundle by bundle
against a gate-level executor, collecting measurement statistics.

The built-in executor is a seeded state-vector simulator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = c.logLevel
			}
			c.cfg = cfg
			return cfg.Validate()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (TOML, or YAML by extension)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		c.runCmd(),
		c.checkCmd(),
		c.gatesCmd(),
		c.tuiCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) runCmd() *cobra.Command {
	var (
		seed        uint64
		format      string
		metricsAddr string
		runArgs     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "run <file.cq>",
		Short: "Execute a cQASM program on the simulator and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("seed") {
				c.cfg.Simulator.Seed = seed
			}
			if flags.Changed("format") {
				c.cfg.Output.Format = format
			}
			if flags.Changed("metrics-addr") {
				c.cfg.Metrics.Address = metricsAddr
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(c.cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if c.cfg.Metrics.Address != "" {
				srv := startMetricsServer(c.cfg.Metrics.Address, logger)
				defer srv.Shutdown()
			}

			exec := InstrumentExecutor(NewSimulator(c.cfg.Simulator), logger)
			report, err := RunFile(args[0], exec, RunInput{Args: runArgs}, Options{Logger: logger})
			if err != nil {
				return err
			}
			return report.Encode(cmd.OutOrStdout(), c.cfg.Output.Format)
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "simulator seed (0 picks one from the clock)")
	cmd.Flags().StringVarP(&format, "format", "o", FormatText, "report format: json, yaml or text")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().StringToStringVar(&runArgs, "arg", nil, "run argument passed to the program (key=value, repeatable)")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.cq>",
		Short: "Parse a cQASM program and summarise it without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuit, err := ParseFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(args[0], circuit))
			return nil
		},
	}
}

func (c *cli) gatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gates",
		Short: "List the gates the engine can issue",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), renderCatalog())
		},
	}
}

func (c *cli) tuiCmd() *cobra.Command {
	var (
		seed    uint64
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "tui <file.cq>",
		Short: "Step through a cQASM program interactively",
		Long: `Runs a cQASM program on the simulator one bundle at a time.

Navigation:
  space     - Execute the next bundle
  r         - Run to the end without pausing
  ↑/↓       - Scroll the display output
  q         - Quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				c.cfg.Simulator.Seed = seed
			}

			// The terminal belongs to the UI, so logs only go to a file.
			logger := zap.NewNop()
			if logFile != "" {
				l, err := newLogger(c.cfg.Log, logFile)
				if err != nil {
					return err
				}
				defer l.Sync() //nolint:errcheck
				logger = l
			}

			circuit, err := ParseFile(args[0])
			if err != nil {
				return err
			}
			exec := InstrumentExecutor(NewSimulator(c.cfg.Simulator), logger)
			report, err := runTUI(args[0], circuit, exec, RunInput{}, logger)
			if err != nil {
				return errors.Wrap(err, "tui")
			}
			return report.Encode(cmd.OutOrStdout(), FormatText)
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "simulator seed (0 picks one from the clock)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cqrun v%s\n", Version)
			fmt.Fprintf(out, "  Frontend:   %s (%s)\n", frontendName, frontendAuthor)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
