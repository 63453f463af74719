package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golutra/golutra/internal/config"
	"github.com/golutra/golutra/internal/daemon"
	"github.com/golutra/golutra/internal/logger"
	"github.com/spf13/cobra"
)

func defaultDataDir() string {
	if dir := os.Getenv("GOLUTRA_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".golutra"
	}
	return filepath.Join(home, ".golutra")
}

func main() {
	root := &cobra.Command{
		Use:   "golutrad",
		Short: "golutra terminal orchestration daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			socket, _ := cmd.Flags().GetString("socket")
			logLevel, _ := cmd.Flags().GetString("log-level")
			auditLog, _ := cmd.Flags().GetString("audit-dispatch-log")
			if socket == "" {
				socket = filepath.Join(dir, "golutrad.sock")
			}

			if err := logger.Init(logLevel, filepath.Join(dir, "golutrad.log")); err != nil {
				return fmt.Errorf("golutrad: init logger: %w", err)
			}

			userConfigDir, err := config.GetUserConfigDir()
			if err != nil {
				return fmt.Errorf("golutrad: resolve user config dir: %w", err)
			}
			projectDir, err := config.GetProjectDir()
			if err != nil {
				return fmt.Errorf("golutrad: resolve project dir: %w", err)
			}
			mgr := config.NewManager()
			if err := mgr.Load(userConfigDir, projectDir); err != nil {
				return fmt.Errorf("golutrad: load config: %w", err)
			}

			cfg := daemon.Config{
				Dir:              dir,
				SocketPath:       socket,
				GCSchedule:       mgr.Get().GCSchedule,
				AuditDispatchLog: auditLog,
			}
			if err := daemon.Run(cfg); err != nil {
				return fmt.Errorf("golutrad: %w", err)
			}
			return nil
		},
	}

	root.Flags().String("dir", defaultDataDir(), "data directory (workspace registry, per-workspace chat databases)")
	root.Flags().String("socket", "", "control socket path (default: <dir>/golutrad.sock)")
	root.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	root.Flags().String("audit-dispatch-log", "", "path to append dispatch-span audit events as JSON lines (off by default)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
