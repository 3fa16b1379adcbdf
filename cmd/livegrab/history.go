package livegrab

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/audit"
)

var (
	historyJSON  bool
	historyLimit int
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show audited runs, newest first",
		RunE:  runHistory,
	}
	cmd.Flags().BoolVar(&historyJSON, "json", false, "print records as JSON")
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "show at most this many runs (0 = all)")

	del := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete a run record by its index in `livegrab history`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			a, err := openAudit()
			if err != nil {
				return err
			}
			if err := a.DeleteRecord(idx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted run", idx)
			return nil
		},
	}
	cmd.AddCommand(del)
	rootCmd.AddCommand(cmd)
}

func openAudit() (*audit.AuditLog, error) {
	path, err := audit.DefaultPath()
	if err != nil {
		return nil, err
	}
	return audit.NewAuditLog(path), nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := openAudit()
	if err != nil {
		return err
	}
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}
	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No audited runs. Use `livegrab grab --audit` or set `audit: true` in config.")
		return nil
	}
	for i, r := range records {
		flag := ""
		if r.Incomplete {
			flag = " [INCOMPLETE]"
		}
		fmt.Fprintf(out, "%3d  %s  %d unique (%d new, %d baselined)  H:%d M:%d L:%d  %s%s\n",
			i, r.Timestamp.Local().Format(time.DateTime), r.TotalUnique, r.NewFindings, r.BaselinedCount,
			r.SeverityCounts["high"], r.SeverityCounts["medium"], r.SeverityCounts["low"],
			strings.Join(r.Sources, ","), flag)
	}
	return nil
}
