// aresim evaluates LLM-driven agents against simulated scenarios: replay
// a scenario's oracle, judge a recorded agent trace, or run the full
// evaluation service.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	exitSuccess = 0
	exitFailed  = 1
	exitError   = 2
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	var configDir string

	root := &cobra.Command{
		Use:          "aresim",
		Short:        "Agent evaluation simulator",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			envPath := filepath.Join(configDir, ".env")
			if err := godotenv.Load(envPath); err != nil {
				slog.Debug("no .env file, continuing with existing environment",
					"path", envPath, "error", err)
			}
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "."), "directory holding aresim.yaml and .env")

	root.AddCommand(newRunCmd(&configDir))
	root.AddCommand(newJudgeCmd(&configDir))
	root.AddCommand(newServeCmd(&configDir))

	if err := root.Execute(); err != nil {
		os.Exit(exitError)
	}
}
