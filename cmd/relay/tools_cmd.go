package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalogue",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered tools",
	RunE:  runToolsList,
}

var toolsShowCmd = &cobra.Command{
	Use:   "show [tool-name]",
	Short: "Show tool details",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsShow,
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [tool-name]",
	Short: "Invoke a tool by its catalogue name",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispatch,
}

var (
	toolOrigin   string
	dispatchArgs string
)

func init() {
	toolsCmd.AddCommand(toolsListCmd, toolsShowCmd)

	toolsListCmd.Flags().StringVar(&toolOrigin, "origin", "", "Filter by origin (native, remote)")

	dispatchCmd.Flags().StringVar(&dispatchArgs, "args", "{}", "Tool arguments as a JSON object")
}

func runToolsList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tools")
	if err != nil {
		return err
	}

	var tools []map[string]interface{}
	if err := json.Unmarshal(resp, &tools); err != nil {
		return err
	}

	if len(tools) == 0 {
		fmt.Println("Catalogue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORIGIN\tSERVER\tDESCRIPTION")
	for _, t := range tools {
		origin := t["origin"].(string)
		if toolOrigin != "" && origin != toolOrigin {
			continue
		}
		serverID := ""
		if sid, ok := t["server_id"].(string); ok {
			serverID = sid
		}
		desc := ""
		if d, ok := t["description"].(string); ok {
			desc = truncate(d, 50)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t["name"], origin, serverID, desc)
	}
	w.Flush()
	return nil
}

func runToolsShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tools/" + args[0])
	if err != nil {
		return err
	}

	var tool map[string]interface{}
	if err := json.Unmarshal(resp, &tool); err != nil {
		return err
	}

	fmt.Printf("Name:        %s\n", tool["name"])
	fmt.Printf("Origin:      %s\n", tool["origin"])
	if desc, ok := tool["description"].(string); ok && desc != "" {
		fmt.Printf("Description: %s\n", desc)
	}
	if sid, ok := tool["server_id"].(string); ok && sid != "" {
		fmt.Printf("Server:      %s\n", sid)
		fmt.Printf("Remote name: %s\n", tool["remote_name"])
	}
	if params, ok := tool["parameters"].(map[string]interface{}); ok && len(params) > 0 {
		pretty, err := json.MarshalIndent(params, "", "  ")
		if err == nil {
			fmt.Printf("Parameters:\n%s\n", string(pretty))
		}
	}
	return nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	var toolArgs map[string]interface{}
	if err := json.Unmarshal([]byte(dispatchArgs), &toolArgs); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	body := map[string]interface{}{
		"tool": args[0],
		"args": toolArgs,
	}

	resp, err := apiPost("/dispatch", body)
	if err != nil {
		return err
	}

	var result struct {
		Result struct {
			Text string                 `json:"text"`
			Data map[string]interface{} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Println(result.Result.Text)
	if len(result.Result.Data) > 0 {
		pretty, err := json.MarshalIndent(result.Result.Data, "", "  ")
		if err == nil {
			fmt.Println(string(pretty))
		}
	}
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
