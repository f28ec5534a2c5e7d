package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"casepulse/internal/config"
	"casepulse/internal/dataprocessing"
	"casepulse/internal/dataset"
	"casepulse/internal/exporter"
	"casepulse/internal/infrastructure"
	"casepulse/internal/services"
	"casepulse/internal/validation"
	"casepulse/pkg/contracts"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	dataFile   string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "casectl",
		Short: "Inspect and export the CasePulse case file",
		Long: `casectl reads the same case file and configuration as the dashboard.

Available subcommands:
  summary - Print the totals shown on the summary cards
  states  - Print the per-state table for a status filter
  export  - Write the per-state table as CSV or Excel
  check   - Validate the case file and report what was loaded
  version - Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: casepulse.yaml lookup)")
	flags.StringVarP(&opts.dataFile, "file", "f", "", "case file to read, overrides data.file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	root.AddCommand(
		newSummaryCmd(opts),
		newStatesCmd(opts),
		newExportCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and builds the stderr logger. It runs once per
// invocation.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFrom(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if o.dataFile != "" {
		cfg.Data.File = o.dataFile
	}
	cfg.Logging.Level = o.logLevel

	o.cfg = cfg
	o.logger = infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	return nil
}

// caseService loads the case file once and returns a service over it.
func (o *rootOptions) caseService(cmd *cobra.Command) (*services.CaseService, error) {
	if err := o.setup(cmd); err != nil {
		return nil, err
	}

	store := dataset.NewStore(o.cfg.DataFile(), dataprocessing.NewLoader(o.logger), o.logger, nil)
	if _, err := store.Reload(cmd.Context()); err != nil {
		return nil, fmt.Errorf("load %s: %w", store.Path(), err)
	}
	return services.NewCaseService(store, nil, o.logger, o.cfg.Data.MaxPageSize), nil
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the totals shown on the summary cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.caseService(cmd)
			if err != nil {
				return err
			}
			summary, err := svc.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			if summary.Missing {
				fmt.Fprintf(out, "Case file %s was not found. Showing an empty dataset.\n", summary.Source)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Total Cases\t%d\n", summary.Total)
			fmt.Fprintf(tw, "Recovered Cases\t%d\n", summary.Recovered)
			fmt.Fprintf(tw, "Active Cases\t%d\n", summary.Active)
			fmt.Fprintf(tw, "Deaths\t%d\n", summary.Deceased)
			fmt.Fprintf(tw, "Migrated\t%d\n", summary.Migrated)
			fmt.Fprintf(tw, "States\t%d\n", summary.States)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newStatesCmd(opts *rootOptions) *cobra.Command {
	var (
		status string
		sortBy string
		order  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "states",
		Short: "Print the per-state table for a status filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := services.ParseFilter(status)
			if err != nil {
				return err
			}
			key, dir, err := services.ParseSort(sortBy, order)
			if err != nil {
				return err
			}

			svc, err := opts.caseService(cmd)
			if err != nil {
				return err
			}
			rows, err := svc.Breakdown(cmd.Context(), filter, key, dir)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STATE\tTOTAL\tACTIVE\tRECOVERED\tDEATHS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", r.State, r.Total, r.Active, r.Recovered, r.Deceased)
			}
			return tw.Flush()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&status, "status", "s", "All", "status filter: All, Hospitalized, Recovered or Deceased")
	flags.StringVar(&sortBy, "sort", "total", "sort column: state, total, active, recovered or deceased")
	flags.StringVar(&order, "order", "", "asc or desc (default depends on the column)")
	flags.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// export views
const (
	exportTable = "table"
	exportChart = "chart"
	exportCases = "cases"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		status string
		view   string
		state  string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the per-state table as CSV or Excel",
		Long: `export writes one of three views of the case file:

  table - the per-state table (csv or xlsx)
  chart - the State,Count bars behind the chart (csv)
  cases - individual case rows, optionally for one --state (csv)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := services.ParseFormat(format)
			if err != nil {
				return err
			}
			switch view {
			case exportTable, exportChart, exportCases:
			default:
				return fmt.Errorf("unknown view %q: want table, chart or cases", view)
			}
			if view != exportTable && f != exporter.FormatCSV {
				return fmt.Errorf("%w: view %q is only available as csv", services.ErrUnsupportedFormat, view)
			}
			filter, err := services.ParseFilter(status)
			if err != nil {
				return err
			}

			svc, err := opts.caseService(cmd)
			if err != nil {
				return err
			}
			if err := validation.NewFileValidator(opts.logger).ValidateExportTarget(out, "."+string(f)); err != nil {
				return err
			}

			write := func(w io.Writer) error {
				switch view {
				case exportChart:
					return svc.ExportStateCounts(cmd.Context(), filter, w)
				case exportCases:
					return svc.ExportCases(cmd.Context(), filter, state, w)
				default:
					return svc.Export(cmd.Context(), f, filter, w)
				}
			}
			if err := exporter.WriteFile(out, write); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", string(exporter.FormatCSV), "csv or xlsx")
	flags.StringVarP(&status, "status", "s", "All", "status filter")
	flags.StringVar(&view, "view", exportTable, "table, chart or cases")
	flags.StringVar(&state, "state", "", "only rows from this state (cases view)")
	flags.StringVarP(&out, "out", "o", "", "output file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the case file and report what was loaded",
		Long: `check fails when the case file is missing, has an unsupported type or
cannot be parsed. The dashboard itself serves an empty dataset for a missing
file; check is the strict variant for scripts and CI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.setup(cmd); err != nil {
				return err
			}
			if err := validation.NewFileValidator(opts.logger).ValidateCaseFile(opts.cfg.DataFile()); err != nil {
				return err
			}

			svc, err := opts.caseService(cmd)
			if err != nil {
				return err
			}
			summary, err := svc.Summary(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok %s: %d cases in %d states\n", summary.Source, summary.Total, summary.States)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), contracts.GetVersionInfo())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
