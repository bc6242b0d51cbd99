package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/config"
	"github.com/AlfredBerg/green-scraper/internal/logging"
	"github.com/AlfredBerg/green-scraper/internal/outputHandlers/sqlite"
	"github.com/AlfredBerg/green-scraper/internal/outputHandlers/xlsx"
)

func init() {
	exportCmd.Flags().String("run", "", "Run id to export (default is the latest run)")
	exportCmd.Flags().String("db", "", "sqlite database (default is sqlite_path from the config)")
	exportCmd.Flags().String("output-dir", "", "Spreadsheet directory (default output_<YYYYMMDD>)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a run stored by the sqlite output to a spreadsheet again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.LogLevel, "")
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, _ := cmd.Flags().GetString("db")
		if db == "" {
			db = cfg.SqlitePath
		}
		runID, _ := cmd.Flags().GetString("run")
		if runID == "" {
			if runID, err = sqlite.LatestRun(cmd.Context(), db); err != nil {
				return err
			}
		}

		records, err := sqlite.Records(cmd.Context(), db, runID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("run %s has no records in %s", runID, db)
		}
		log.Info("exporting run", zap.String("run_id", runID), zap.Int("records", len(records)))

		dir, _ := cmd.Flags().GetString("output-dir")
		out := xlsx.New(dir, log)
		if err := out.Handle(cmd.Context(), runID, records); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, out.Path)
		return nil
	},
}
