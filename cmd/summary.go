package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dhcgn/application-tracker/stats"
	"github.com/dhcgn/application-tracker/store"
)

const defaultCSV = "applications.csv"

// NewSummaryCommand reports counts per status and the most frequent
// senders and companies of an existing output file.
func NewSummaryCommand() *cobra.Command {
	var (
		topN      int
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "summary [csv file]",
		Short: "Show statistics for a tracked applications CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultCSV
			if len(args) == 1 {
				path = args[0]
			}
			if topN <= 0 {
				return fmt.Errorf("--top must be positive")
			}

			records, err := store.ReadRecords(path)
			if err != nil {
				return fmt.Errorf("error reading %s: %w", path, err)
			}
			tally := stats.NewTally(records)

			printTally(cmd.OutOrStdout(), path, tally, topN)

			if reportDir == "" {
				return nil
			}
			reports := map[string]map[string]int{
				"status":  statusMap(tally),
				"sender":  tally.Senders,
				"company": tally.Companies,
			}
			if err := saveCSVReports(reports, reportDir, 1000); err != nil {
				return fmt.Errorf("error saving CSV reports: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nReports saved to directory: %s\n", reportDir)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	cmd.Flags().StringVarP(&reportDir, "report-dir", "o", "", "Write CSV reports into this directory")
	return cmd
}

func printTally(w io.Writer, path string, t stats.Tally, topN int) {
	fmt.Fprintf(w, "%s: %d records, %d threads\n\n", path, t.Total, len(t.Threads))

	fmt.Fprintln(w, "By status:")
	for _, p := range t.StatusCounts() {
		fmt.Fprintf(w, "  %-10s %d\n", p.Key, p.Value)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Top %d senders:\n", topN)
	stats.PrettyPrintTop(w, t.Senders, topN)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Top %d companies:\n", topN)
	stats.PrettyPrintTop(w, t.Companies, topN)
}

func statusMap(t stats.Tally) map[string]int {
	m := make(map[string]int, len(t.ByStatus))
	for status, n := range t.ByStatus {
		m[string(status)] = n
	}
	return m
}

// saveCSVReports writes one report_<name>.csv per counter, most frequent
// values first.
func saveCSVReports(counters map[string]map[string]int, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for name, counts := range counters {
		file, err := os.Create(filepath.Join(dir, fmt.Sprintf("report_%s.csv", name)))
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)
		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}
		for _, p := range stats.Top(counts, limit) {
			if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		if err := writer.Error(); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}

	return nil
}
