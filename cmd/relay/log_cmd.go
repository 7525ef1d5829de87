package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the invocation audit log",
	RunE:  runLog,
}

var (
	logTool  string
	logLimit int
)

func init() {
	logCmd.Flags().StringVar(&logTool, "tool", "", "Filter by tool name")
	logCmd.Flags().IntVar(&logLimit, "limit", 20, "Maximum number of entries")
}

func runLog(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("/invocations?limit=%d", logLimit)
	if logTool != "" {
		url += "&tool=" + logTool
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var recs []map[string]interface{}
	if err := json.Unmarshal(resp, &recs); err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Println("No invocations recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOOL\tSTATUS\tMS\tDETAIL")
	for _, r := range recs {
		id := truncateID(r["id"].(string))
		status := r["status"].(string)
		ms := int64(0)
		if d, ok := r["duration_ms"].(float64); ok {
			ms = int64(d)
		}
		detail := ""
		if d, ok := r["detail"].(string); ok {
			detail = d
		}
		if status != "ok" {
			if kind, ok := r["error_kind"].(string); ok && kind != "" {
				detail = fmt.Sprintf("[%s] %s", kind, detail)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", id, r["tool"], status, ms, truncate(detail, 60))
	}
	w.Flush()
	return nil
}
