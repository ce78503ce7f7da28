package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/opencdh/datahub-in-go/pkg/config"
)

// configurationWatchCmd represents the configuration watch command
var configurationWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the config file and reload the configuration when it changes",
	Long: `Watch the config file and reload the configuration when it changes.

The watched file is the cdh.yml in the configured config directory
(CDH_CONFIG_PATH, default /etc/cdh/config). Each change is reloaded into
the process-wide configuration and the resulting attributes are printed.

Example:
  datahubctl configuration watch`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := watchConfiguration(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configurationCmd.AddCommand(configurationWatchCmd)
}

func watchConfiguration() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	filename := cfg.ConfigFilePath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filename); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", filename, err)
	}

	fmt.Printf("Watching %s for configuration changes\n", filename)

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				fmt.Printf("[%s] Config file modified, reloading...\n", time.Now().Format(time.RFC3339))

				if err := config.Reload(); err != nil {
					fmt.Fprintf(os.Stderr, "Error reloading configuration: %v\n", err)
					continue
				}
				fmt.Print(config.Get().FormatText())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil
		}
	}
}
