package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/stockscan/internal/model"
)

// requestFlags are the scan parameters shared by scan and export.
type requestFlags struct {
	scannerType string
	date        string
	count       int
	ascending   bool
	simulation  bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.scannerType, "type", "t", model.ScannerTypes[0], "scanner type")
	fs.StringVarP(&f.date, "date", "d", "", "trading date YYYY-MM-DD (default today)")
	fs.IntVarP(&f.count, "count", "n", model.DefaultCount, fmt.Sprintf("number of results (%d-%d)", model.MinCount, model.MaxCount))
	fs.BoolVar(&f.ascending, "ascending", false, "rank ascending instead of descending")
	fs.BoolVar(&f.simulation, "simulation", true, "run against simulated data")
}

func (f *requestFlags) request() (model.ScanRequest, error) {
	date := f.date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	req := model.ScanRequest{
		ScannerType: f.scannerType,
		Date:        date,
		Count:       f.count,
		Ascending:   f.ascending,
		Simulation:  f.simulation,
	}
	return req, req.Validate()
}

func newServeCommand(opts *Options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scanner view and proxy /api to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}
			a, err := newApplication(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func newScanCommand(opts *Options) *cobra.Command {
	var (
		rf     requestFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a ranked stock scan and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.request()
			if err != nil {
				return err
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown output format %q (table|json)", format)
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			a, err := newApplication(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			resp, err := a.Store.Scan(cmd.Context(), req)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return printTable(cmd.OutOrStdout(), resp)
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table|json")
	return cmd
}

func newExportCommand(opts *Options) *cobra.Command {
	var (
		rf  requestFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a scan as CSV into the download directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.request()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Storage.DownloadDir = out
			}
			a, err := newApplication(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			path, err := a.Store.ExportToCSV(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "download directory (overrides storage.download_dir)")
	return cmd
}

func newVersionCommand(opts *Options) *cobra.Command {
	var clientOnly bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the client and backend versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "stockscan %s\n", Version)
			if clientOnly {
				return nil
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg.Storage.HistoryDB = ""
			a, err := newApplication(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			v, err := a.API.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "backend %s\n", v.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clientOnly, "client", false, "print only the client version")
	return cmd
}

// printTable writes the results as aligned columns followed by a summary.
func printTable(w io.Writer, resp *model.ScanResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := model.Columns(resp.Data)
	if len(cols) > 0 {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
		for _, row := range resp.Data {
			for i, c := range cols {
				if i > 0 {
					fmt.Fprint(tw, "\t")
				}
				fmt.Fprint(tw, row.Text(c))
			}
			fmt.Fprintln(tw)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\ntotal: %d, execution time: %.2fs\n", resp.TotalCount, resp.ExecutionTime)
	if resp.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", resp.Warning)
	}
	return nil
}
