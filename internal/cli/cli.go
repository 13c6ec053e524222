package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vendorsync/internal/config"
	"vendorsync/internal/db"
	"vendorsync/internal/feed"
	"vendorsync/internal/logs"
	"vendorsync/internal/sync"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "vendorsync",
	Short:         "Synchronize vendor product catalogs into the store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "vendorsync.yaml", "configuration file")
	rootCmd.AddCommand(runCmd, runsCmd, adaptersCmd)
	runCmd.Flags().StringP("name", "n", "", "import configuration to run (required)")
	_ = runCmd.MarkFlagRequired("name")
	runsCmd.Flags().IntP("limit", "l", 10, "number of recent runs to show")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vendorsync:", err)
		os.Exit(1)
	}
}

// setup loads the configuration, opens the log sink and migrates the store.
func setup() (*config.Config, zerolog.Logger, *db.Handle, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	log := logs.New(cfg.Log.File, cfg.Log.Level, cfg.Log.Console)

	h, err := db.Open(cfg.Store.Dialect, cfg.Store.DSN)
	if err != nil {
		return nil, log, nil, err
	}
	if err := h.Migrate(); err != nil {
		return nil, log, nil, err
	}
	log.Debug().Str("dialect", h.Dialect).Msg("store ready")
	return cfg, log, h, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one import configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		cfg, log, h, err := setup()
		if err != nil {
			return err
		}
		imp, err := cfg.Import(name)
		if err != nil {
			return err
		}

		run, err := sync.NewRunner(log, h, imp).Run(cmd.Context())
		if err != nil {
			log.Error().Err(err).Str("import", name).Msg("run aborted")
			return err
		}
		fmt.Println(run.ResultText())
		if run.Failed > 0 {
			return fmt.Errorf("%d of %d items failed", run.Failed, run.Total)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent import runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		_, _, h, err := setup()
		if err != nil {
			return err
		}

		var runs []db.ImportRun
		if err := h.DB.Order("run_date DESC").Limit(limit).Find(&runs).Error; err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-20s  %s  %s\n",
				r.RunDate.Format("2006-01-02 15:04:05"), r.ConfigName, r.RunID, r.Summary())
		}
		return nil
	},
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List registered feed adapters",
	Run: func(cmd *cobra.Command, args []string) {
		names := make([]string, 0)
		for name := range feed.All() {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
	},
}
