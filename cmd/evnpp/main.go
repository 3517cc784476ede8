// evnpp drives the post-processing of EVN experiments: it fetches the
// correlator output, converts and inspects it, archives the results and runs
// the EVN pipeline, asking the operator to verify each stage. Progress is
// stored per experiment so an interrupted run picks up where it stopped.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jive-vlbi/evnpp/pkg/config"
	"github.com/jive-vlbi/evnpp/pkg/dialog"
	"github.com/jive-vlbi/evnpp/pkg/experiment"
	"github.com/jive-vlbi/evnpp/pkg/logging"
	"github.com/jive-vlbi/evnpp/pkg/remote"
	"github.com/jive-vlbi/evnpp/pkg/runner"
	"github.com/jive-vlbi/evnpp/pkg/steps"
	"github.com/jive-vlbi/evnpp/pkg/tui"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagExp    string
	flagSupSci string
	flagLoDir  string
	flagDryRun bool
	flagConfig string
	infoPage   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "evnpp",
	Short: "EVN post-processing for the JIVE support scientists",
	Long: "evnpp walks an EVN experiment through post-correlation processing:\n" +
		"lis files, MS conversion, standard plots, flagging, FITS-IDI, archive\n" +
		"and the EVN pipeline, with operator checkpoints between the stages.",
	SilenceUsage: true,
}

// session bundles everything a command needs for one experiment.
type session struct {
	cfg   *config.Settings
	log   *zap.SugaredLogger
	store *experiment.Store
	run   *runner.Runner
}

func newSession() (*session, error) {
	if flagExp == "" {
		return nil, fmt.Errorf("no experiment given; use --exp NAME")
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagSupSci != "" {
		cfg.SupSci = flagSupSci
	}
	if flagLoDir != "" {
		cfg.DataRoot = flagLoDir
	}

	expDir := cfg.ExpDir(flagExp)
	if err := os.MkdirAll(expDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	log, err := logging.New(expDir, false)
	if err != nil {
		return nil, err
	}

	var exec remote.Executor
	if flagDryRun {
		exec = &remote.DryRunExecutor{Log: func(line string) { log.Infof("dry-run: %s", line) }}
	} else {
		exec = remote.NewSSHExecutor(expDir)
	}

	s := &session{cfg: cfg, log: log, store: experiment.NewStore(cfg.DataRoot)}
	s.run = &runner.Runner{
		Registry: steps.DefaultRegistry(),
		Store:    s.store,
		Cfg:      cfg,
		Exec:     exec,
		Gate:     dialog.NewTerminalGate(),
		Log:      log,
	}
	return s, nil
}

// load reads the stored experiment; create makes a fresh one when nothing is
// stored yet, which only the run command does.
func (s *session) load() (*experiment.Experiment, error) {
	return s.store.Load(flagExp)
}

func (s *session) loadOrCreate() (*experiment.Experiment, error) {
	exp, err := s.load()
	if err == nil {
		return exp, nil
	}
	var notFound *experiment.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}
	exp, err = experiment.New(flagExp, s.cfg.SupSci)
	if err != nil {
		return nil, err
	}
	s.log.Infof("starting post-processing of %s", exp.Name)
	return exp, nil
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run [FIRST] [LAST]",
	Short: "Run post-processing steps",
	Long: "Without arguments, resumes after the last completed step. With one\n" +
		"step name, runs from that step to the end; with two, runs the range\n" +
		"between them, both included.",
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		exp, err := s.loadOrCreate()
		if err != nil {
			return err
		}

		release, err := runner.AcquireLock(s.cfg.ExpDir(exp.Name))
		if err != nil {
			return err
		}
		defer release()

		first, last := "", ""
		if len(args) > 0 {
			first = args[0]
		}
		if len(args) > 1 {
			last = args[1]
		}
		return s.run.Run(context.Background(), exp, first, last)
	},
}

// --- info ---

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show everything known about the experiment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		exp, err := s.load()
		if err != nil {
			return err
		}
		md := exp.SummaryMarkdown()
		if infoPage {
			return tui.Show(exp.Name, md)
		}
		fmt.Println(md)
		return nil
	},
}

// --- last ---

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the last completed step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		exp, err := s.load()
		if err != nil {
			return err
		}
		last := s.run.Registry.Last(exp)
		if last == "" {
			fmt.Printf("%s: no step completed yet\n", exp.Name)
			return nil
		}
		fmt.Printf("%s: last completed step is %s\n", exp.Name, last)
		return nil
	},
}

// --- exec ---

var execCmd = &cobra.Command{
	Use:   "exec CMD [ARGS...]",
	Short: "Run a single post-processing command by hand",
	Long: "Runs one command from the fixed table with the experiment's\n" +
		"defaults, or with the given arguments instead. Known commands:\n  " +
		strings.Join(steps.ToolNames(), ", "),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		exp, err := s.load()
		if err != nil {
			return err
		}

		release, err := runner.AcquireLock(s.cfg.ExpDir(exp.Name))
		if err != nil {
			return err
		}
		defer release()

		return s.run.ExecTool(context.Background(), exp, args[0], args[1:])
	},
}

// --- edit ---

var editCmd = &cobra.Command{
	Use:   "edit FIELD VALUE",
	Short: "Change a stored experiment field",
	Long: "Overrides a value derived during the run. Editable fields:\n  " +
		strings.Join(experiment.EditableFields, ", ") + "\n" +
		"A single source is reclassified with source:<name>, e.g.\n" +
		"  evnpp edit source:3C345 calibrator",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		exp, err := s.load()
		if err != nil {
			return err
		}

		release, err := runner.AcquireLock(s.cfg.ExpDir(exp.Name))
		if err != nil {
			return err
		}
		defer release()

		if err := exp.Edit(args[0], args[1]); err != nil {
			return err
		}
		if err := s.store.Save(exp); err != nil {
			return err
		}
		s.log.Infof("%s: %s set to %s", exp.Name, args[0], args[1])
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("evnpp %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagExp, "exp", "", "Experiment name (required)")
	rootCmd.PersistentFlags().StringVar(&flagSupSci, "supsci", "", "Support scientist username")
	rootCmd.PersistentFlags().StringVar(&flagLoDir, "lodir", "", "Local data directory root")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Print commands instead of executing them")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a config file")

	infoCmd.Flags().BoolVar(&infoPage, "page", false, "Page the summary in the terminal")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(versionCmd)
}
