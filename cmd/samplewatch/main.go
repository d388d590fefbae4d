package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"samplewatch/internal/config"
	"samplewatch/internal/display"
	"samplewatch/internal/domain"
	"samplewatch/internal/erp"
	"samplewatch/internal/followup"
	"samplewatch/internal/llm"
	"samplewatch/internal/logging"
	"samplewatch/internal/mailer"
	"samplewatch/internal/repo"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "samplewatch",
	Short: "samplewatch - sample follow-up automation for the sales team",
	Long: `samplewatch watches recently shipped product samples and makes sure
no customer goes silent on one.

It reads customers, notes and samples from the ERP data exports (CSV)
or a local database, asks an LLM provider whether customer notes
confirm delivery, creates follow-up tasks for the assigned salespeople,
and emails each salesperson a digest of their new tasks. Failed sends
are retried on the next run without opening a duplicate thread.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(logging.Options{
			Dir:        cfg.Logging.Dir,
			Level:      level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("samplewatch starting, data source: %s", cfg.DataSource)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Shutdown()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes one follow-up pass
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sample follow-up workflow once",
	Long: `Scans samples shipped in the last 14 days, analyzes the customers'
notes for delivery confirmations, creates follow-up tasks and emails
each salesperson a digest. Safe to re-run: samples that already have a
task are skipped and failed emails from the previous run are retried.`,
	RunE: runFollowup,
}

// customerCmd shows one customer with stats
var customerCmd = &cobra.Command{
	Use:   "customer [id]",
	Short: "Show a customer with note and sample counts",
	Args:  cobra.ExactArgs(1),
	RunE:  showCustomer,
}

// notesCmd lists or processes pending notes
var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List pending notes grouped by customer",
	RunE:  listNotes,
}

var processNotes bool

// initCmd writes a default config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("wrote default config to %s\n", configPath)
		return nil
	},
}

func runFollowup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repos, err := repo.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open repositories: %w", err)
	}
	defer repos.Close()

	sender := mailer.NewSMTPSender(cfg.Mail)
	m := mailer.New(cfg, sender, repos.MailLogs)
	wf := followup.New(repos, m, func() (llm.Client, error) {
		return llm.NewClient(cfg)
	})

	summary, err := wf.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(display.RunSummary(summary.BatchID, summary.SamplesSeen,
		summary.TasksCreated, summary.EmailsSent, summary.EmailsFailed))
	if summary.EmailsFailed > 0 {
		return fmt.Errorf("%d emails failed to send, re-run to retry", summary.EmailsFailed)
	}
	return nil
}

func showCustomer(cmd *cobra.Command, args []string) error {
	repos, err := repo.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open repositories: %w", err)
	}
	defer repos.Close()

	service := erp.NewService(repos.Customers, repos.Notes, repos.Samples)
	view, err := service.CustomerWithStats(args[0])
	if err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("customer not found: %s", args[0])
	}
	fmt.Println(display.CustomerView(view))
	return nil
}

func listNotes(cmd *cobra.Command, args []string) error {
	repos, err := repo.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open repositories: %w", err)
	}
	defer repos.Close()

	service := erp.NewService(repos.Customers, repos.Notes, repos.Samples)
	pending, err := service.PendingNotes()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println(display.Dim.Render("no pending notes"))
		return nil
	}

	byCustomer := map[string][]domain.Note{}
	for _, n := range pending {
		byCustomer[n.CustomerID] = append(byCustomer[n.CustomerID], n)
	}
	customers := make([]string, 0, len(byCustomer))
	for id := range byCustomer {
		customers = append(customers, id)
	}
	sort.Strings(customers)

	for _, id := range customers {
		fmt.Println(display.Bold.Render(id))
		for _, n := range byCustomer[id] {
			fmt.Println(display.NoteLine(n))
			if processNotes {
				if err := service.ProcessNote(n.ID, ""); err != nil {
					fmt.Println(display.ErrStyle.Render(fmt.Sprintf("    failed to process note %d: %v", n.ID, err)))
				}
			}
		}
	}
	if processNotes {
		fmt.Printf("\nprocessed %d notes\n", len(pending))
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "samplewatch.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	notesCmd.Flags().BoolVar(&processNotes, "process", false, "Mark the listed notes as processed")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(customerCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
