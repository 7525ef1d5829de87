package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fentz26/relay/internal/audit"
	"github.com/fentz26/relay/internal/bridge"
	"github.com/fentz26/relay/internal/controlplane"
	"github.com/fentz26/relay/internal/remote"
	"github.com/fentz26/relay/internal/remote/loopback"
	"github.com/fentz26/relay/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
	configPath string
	demoMode   bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Relay daemon (relayd)",
	Long:  `Starts the Relay daemon which hosts the tool catalogue and the HTTP dispatch API.`,
	RunE:  runDaemon,
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".relay", "relay.db")
	defaultConfig := filepath.Join(homeDir, ".relay", "servers.yaml")

	daemonCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:7520", "Listen address for the API server")
	daemonCmd.Flags().StringVar(&dbPath, "db", defaultDB, "Path to SQLite database")
	daemonCmd.Flags().StringVar(&configPath, "config", defaultConfig, "Path to server config file")
	daemonCmd.Flags().BoolVar(&demoMode, "demo", false, "Register built-in demo tools and a demo calc server")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Relay daemon...")

	// Initialize store
	s, err := store.New(dbPath)
	if err != nil {
		return err
	}

	// Initialize components
	recorder := audit.NewRecorder(s)
	system := bridge.NewSystem()
	dialer := loopback.NewDialer()

	service := controlplane.NewService(system, dialer, recorder, s)
	server := controlplane.NewServer(service, listenAddr)

	if demoMode {
		if err := registerDemoTools(service, dialer); err != nil {
			s.Close()
			return err
		}
		log.Println("Demo tools registered")
	}

	// Register enabled servers from config
	cfg, err := remote.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: failed to load server config: %v (using defaults)", err)
		cfg = remote.DefaultConfig()
	}
	for _, sc := range cfg.Servers {
		if !sc.Enabled {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		res, err := service.RegisterRemoteServer(ctx, sc)
		cancel()
		if err != nil {
			log.Printf("Warning: server %q failed to connect: %v", sc.ID, err)
			continue
		}
		log.Printf("Server %q connected with %d tools", sc.ID, len(res.Registered))
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// registerDemoTools installs two native tools and an in-process calc server
// so the catalogue is populated without any external backends.
func registerDemoTools(service *controlplane.Service, dialer *loopback.Dialer) error {
	err := service.RegisterNativeTool("get_time", "Return the current time",
		bridge.Schema{"type": "object"},
		func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
			return bridge.Result{Text: time.Now().Format(time.RFC3339)}, nil
		})
	if err != nil {
		return err
	}

	err = service.RegisterNativeTool("echo", "Echo back the text argument",
		bridge.Schema{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
		},
		func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
			text, _ := args["text"].(string)
			return bridge.Result{Text: text}, nil
		})
	if err != nil {
		return err
	}

	calc := loopback.NewServer()
	calc.Register(bridge.ToolDescriptor{
		Name:        "add",
		Description: "Add two numbers",
		Schema: bridge.Schema{
			"type": "object",
			"properties": map[string]interface{}{
				"a": map[string]interface{}{"type": "number"},
				"b": map[string]interface{}{"type": "number"},
			},
		},
	}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		a, _ := args["a"].(float64)
		b, _ := args["b"].(float64)
		return bridge.Result{Text: fmt.Sprintf("%g", a+b)}, nil
	})
	calc.Register(bridge.ToolDescriptor{
		Name:        "multiply",
		Description: "Multiply two numbers",
		Schema: bridge.Schema{
			"type": "object",
			"properties": map[string]interface{}{
				"a": map[string]interface{}{"type": "number"},
				"b": map[string]interface{}{"type": "number"},
			},
		},
	}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		a, _ := args["a"].(float64)
		b, _ := args["b"].(float64)
		return bridge.Result{Text: fmt.Sprintf("%g", a*b)}, nil
	})
	dialer.Add("demo://calc", calc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = service.RegisterRemoteServer(ctx, remote.ServerConfig{
		ID:      "calc",
		Prefix:  "calc",
		Spec:    remote.LaunchSpec{Endpoint: "demo://calc"},
		Enabled: true,
	})
	return err
}
