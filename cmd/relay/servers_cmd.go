package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fentz26/relay/internal/remote"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage remote tool servers",
}

var serverAddCmd = &cobra.Command{
	Use:   "add [server-id]",
	Short: "Register a remote tool server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerAdd,
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	RunE:  runServerList,
}

var serverShowCmd = &cobra.Command{
	Use:   "show [server-id]",
	Short: "Show server details",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerShow,
}

var serverRmCmd = &cobra.Command{
	Use:   "rm [server-id]",
	Short: "Unregister a server and drop its tools",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerRm,
}

var serverReconnectCmd = &cobra.Command{
	Use:   "reconnect [server-id]",
	Short: "Reconnect a server and refresh its tool snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerReconnect,
}

var (
	serverPrefix   string
	serverEndpoint string
	serverCommand  string
	serverArgs     []string
	saveConfig     bool
)

func init() {
	serverCmd.AddCommand(serverAddCmd, serverListCmd, serverShowCmd, serverRmCmd, serverReconnectCmd)

	serverAddCmd.Flags().StringVar(&serverPrefix, "prefix", "", "Namespace prefix for the server's tools")
	serverAddCmd.Flags().StringVar(&serverEndpoint, "endpoint", "", "Endpoint to dial")
	serverAddCmd.Flags().StringVar(&serverCommand, "command", "", "Command to launch the server process")
	serverAddCmd.Flags().StringSliceVar(&serverArgs, "arg", nil, "Argument for the launch command (repeatable)")
	serverAddCmd.Flags().BoolVar(&saveConfig, "save", false, "Persist the server to ~/.relay/servers.yaml")
}

func runServerAdd(cmd *cobra.Command, args []string) error {
	id := args[0]
	body := map[string]interface{}{
		"id":       id,
		"prefix":   serverPrefix,
		"endpoint": serverEndpoint,
		"command":  serverCommand,
		"args":     serverArgs,
	}

	resp, err := apiPost("/servers", body)
	if err != nil {
		return err
	}

	var result struct {
		Server struct {
			ToolCount int `json:"tool_count"`
		} `json:"server"`
		Registered []string `json:"registered"`
		Failed     []string `json:"failed"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Registered server %s with %d tools\n", id, len(result.Registered))
	for _, name := range result.Registered {
		fmt.Printf("  + %s\n", name)
	}
	for _, name := range result.Failed {
		fmt.Printf("  ! %s (skipped)\n", name)
	}

	if saveConfig {
		cfg, err := remote.LoadConfigFromHome()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.Upsert(remote.ServerConfig{
			ID:     id,
			Prefix: serverPrefix,
			Spec: remote.LaunchSpec{
				Command:  serverCommand,
				Args:     serverArgs,
				Endpoint: serverEndpoint,
			},
			Enabled: true,
		})
		if err := remote.SaveConfigToHome(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("Saved to ~/.relay/servers.yaml")
	}
	return nil
}

func runServerList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/servers")
	if err != nil {
		return err
	}

	var servers []map[string]interface{}
	if err := json.Unmarshal(resp, &servers); err != nil {
		return err
	}

	if len(servers) == 0 {
		fmt.Println("No servers registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX\tSTATE\tTOOLS")
	for _, s := range servers {
		prefix := ""
		if p, ok := s["prefix"].(string); ok {
			prefix = p
		}
		toolCount := 0
		if tc, ok := s["tool_count"].(float64); ok {
			toolCount = int(tc)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s["id"], prefix, s["state"], toolCount)
	}
	w.Flush()
	return nil
}

func runServerShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/servers/" + args[0])
	if err != nil {
		return err
	}

	var srv map[string]interface{}
	if err := json.Unmarshal(resp, &srv); err != nil {
		return err
	}

	fmt.Printf("ID:         %s\n", srv["id"])
	fmt.Printf("Prefix:     %s\n", srv["prefix"])
	fmt.Printf("State:      %s\n", srv["state"])
	if tc, ok := srv["tool_count"].(float64); ok {
		fmt.Printf("Tools:      %d\n", int(tc))
	}
	if ca, ok := srv["connected_at"].(string); ok && ca != "" {
		fmt.Printf("Connected:  %s\n", ca)
	}
	if le, ok := srv["last_error"].(string); ok && le != "" {
		fmt.Printf("Last error: %s\n", le)
	}
	return nil
}

func runServerRm(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete("/servers/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Unregistered server %s\n", args[0])
	return nil
}

func runServerReconnect(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/servers/"+args[0]+"/reconnect", nil)
	if err != nil {
		return err
	}

	var result struct {
		Registered []string `json:"registered"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Reconnected server %s with %d tools\n", args[0], len(result.Registered))
	return nil
}
