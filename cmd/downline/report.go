package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bgref/internal/domain"
	"bgref/internal/downline"
	"bgref/internal/fallback"
)

// filterFlags maps CLI flag names onto the query keys ParseFilter reads, so
// the CLI and the HTTP endpoint share one parser.
var filterFlags = []struct {
	flag, key, usage string
}{
	{"start-date", downline.KeyStartDate, "earliest last-transaction date (YYYY-MM-DD or RFC3339)"},
	{"end-date", downline.KeyEndDate, "latest last-transaction date (YYYY-MM-DD covers the whole day)"},
	{"min-commission", downline.KeyMinCommission, "minimum total commission"},
	{"max-commission", downline.KeyMaxCommission, "maximum total commission"},
	{"min-volume", downline.KeyMinVolume, "minimum total volume"},
	{"max-volume", downline.KeyMaxVolume, "maximum total volume"},
	{"level", downline.KeyLevel, "only members at this level"},
	{"sort-by", downline.KeySortBy, "commission, volume, transactions or level"},
	{"sort-order", downline.KeySortOrder, "asc or desc (default desc)"},
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Filter, sort and aggregate member records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(fileFlag(cmd))
			if err != nil {
				return err
			}

			values := url.Values{}
			for _, f := range filterFlags {
				v, _ := cmd.Flags().GetString(f.flag)
				if v != "" {
					values.Set(f.key, v)
				}
			}
			spec, ignored := downline.ParseFilter(values)
			if len(ignored) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "ignoring malformed filter values: %s\n", strings.Join(ignored, ", "))
			}

			report := downline.Aggregate(records, spec)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	for _, f := range filterFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check member records against the record invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(fileFlag(cmd))
			if err != nil {
				return err
			}
			if err := domain.ValidateRecords(records); err != nil {
				return fmt.Errorf("invalid records:\n%w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records OK\n", len(records))
			return nil
		},
	}
}

func loadRecords(path string) ([]domain.MemberRecord, error) {
	if path == "" {
		return fallback.DownlineRecords(), nil
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var records []domain.MemberRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}
