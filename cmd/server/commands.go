package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"healthdash/internal/config"
	"healthdash/internal/httpx"
	"healthdash/internal/models"
	"healthdash/internal/services/analysis"
	"healthdash/internal/services/charts"
	"healthdash/internal/services/export"
	"healthdash/internal/services/metrics"
	"healthdash/internal/services/storage"
	"healthdash/internal/version"
)

var (
	flagFormat      string
	flagYear        string
	flagChart       string
	flagDatabaseURL string
	flagTable       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the statistical block over the cleaned table and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := setupCLI()
		if err != nil {
			return err
		}

		result, err := loader.Load()
		if err != nil {
			return err
		}
		rep := analysis.Run(result.Patients, analysis.Options{Alpha: c.Alpha, MinGroupSize: c.MinGroupSize}, logger)

		return printReport(cmd.OutOrStdout(), rep, flagFormat)
	},
}

func printReport(w io.Writer, rep *models.AnalysisReport, format string) error {
	switch format {
	case "text", "":
		return analysis.WriteText(w, rep)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rep)
	}
	return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered view to files or a database",
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx",
	Short: "Write the filtered records, summary and analysis to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cliView()
		if err != nil {
			return err
		}
		path, err := exporter.Save(export.FileName(v.Label, "xlsx"), func(w io.Writer) error {
			return export.WriteXLSX(w, v)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var exportParquetCmd = &cobra.Command{
	Use:   "parquet",
	Short: "Write the filtered records as a Parquet snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cliView()
		if err != nil {
			return err
		}
		path, err := exporter.Save(export.FileName(v.Label, "parquet"), func(w io.Writer) error {
			return export.WriteParquet(w, v.Patients)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var exportPNGCmd = &cobra.Command{
	Use:   "png",
	Short: "Render dashboard charts as PNG images",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cliView()
		if err != nil {
			return err
		}

		types := charts.Types
		if flagChart != "" {
			types = []string{flagChart}
		}
		for _, chartType := range types {
			fig, err := charts.Build(chartType, v.Patients)
			if err != nil {
				return err
			}
			path, err := exporter.Save(export.FileName(chartType+"-"+v.Label, "png"), func(w io.Writer) error {
				return export.WriteChartPNG(w, fig)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

var exportPostgresCmd = &cobra.Command{
	Use:   "postgres",
	Short: "Replace a Postgres table with the filtered records",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cliView()
		if err != nil {
			return err
		}

		connStr := cfg.DatabaseURL
		if flagDatabaseURL != "" {
			connStr = flagDatabaseURL
		}
		if connStr == "" {
			return fmt.Errorf("no database url; set database_url, HEALTHDASH_DATABASE_URL or --database-url")
		}
		table := cfg.DatabaseTable
		if flagTable != "" {
			table = flagTable
		}

		copied, err := export.PublishPostgres(cmd.Context(), connStr, table, v.Patients, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", copied, table)
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt the data directory at rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := openPlainStorage(c); err != nil {
			return err
		}
		password, err := readNewPassword()
		if err != nil {
			return err
		}
		if err := store.EnableEncryption(password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "encrypted %s\n", c.DataDirectory)
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := openPlainStorage(c); err != nil {
			return err
		}
		password, err := readPassword("Data directory password: ")
		if err != nil {
			return err
		}
		if err := store.DisableEncryption(password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "decrypted %s\n", c.DataDirectory)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or write the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a YAML file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		path := "healthdash.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Save(c, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintln(cmd.OutOrStdout(), "healthdash "+info.String())
		if warning := info.Check(); warning != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), warning)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&flagFormat, "format", "text", "output format: text, json or yaml")

	exportCmd.PersistentFlags().StringVar(&flagYear, "year", models.AllYears, "admission year to export, or \"All Years\"")
	exportPNGCmd.Flags().StringVar(&flagChart, "chart", "", "single chart type (default all)")
	exportPostgresCmd.Flags().StringVar(&flagDatabaseURL, "database-url", "", "postgres connection string (overrides config)")
	exportPostgresCmd.Flags().StringVar(&flagTable, "table", "", "destination table (overrides config)")
	exportCmd.AddCommand(exportXLSXCmd, exportParquetCmd, exportPNGCmd, exportPostgresCmd)

	configCmd.AddCommand(configShowCmd, configInitCmd)
}

// setupCLI opens storage and builds the services for a one-shot command
func setupCLI() (*config.Config, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if err := openStorage(c); err != nil {
		return nil, err
	}
	if err := SetupDependencies(c); err != nil {
		return nil, err
	}
	return c, nil
}

// openPlainStorage opens the data directory without unlocking it
func openPlainStorage(c *config.Config) error {
	var err error
	store, err = storage.New(c.DataDirectory, logger)
	return err
}

// cliView loads the table and narrows it to --year
func cliView() (*export.View, error) {
	if _, err := setupCLI(); err != nil {
		return nil, err
	}

	result, err := loader.Load()
	if err != nil {
		return nil, err
	}

	sel, err := httpx.ParseYear(flagYear, result.Patients)
	if err != nil {
		return nil, err
	}
	view := sel.Apply(result.Patients)

	return &export.View{
		Label:    sel.Label(),
		Patients: view,
		Metrics:  metrics.New().CalculateMetrics(view),
		Report:   analysisService.Report(result.Patients),
	}, nil
}

// logReport writes one summary line per test of the statistical block
func logReport(rep *models.AnalysisReport) {
	evt := logger.Info().Str("report_id", rep.ID).Int("skipped", len(rep.Skipped))
	if rep.ChiSquare != nil {
		evt = evt.Float64("chi2_p", rep.ChiSquare.PValue)
	}
	if rep.ANOVA != nil {
		evt = evt.Float64("anova_p", rep.ANOVA.PValue)
	}
	if rep.Kruskal != nil {
		evt = evt.Float64("kruskal_p", rep.Kruskal.PValue)
	}
	evt.Msg("statistical block ready")
}
