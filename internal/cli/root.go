// Package cli implements the agent-mail CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-mail/internal/config"
	"github.com/rcliao/agent-mail/internal/logger"
	"github.com/rcliao/agent-mail/internal/mailbox"
	"github.com/rcliao/agent-mail/internal/store"
)

var (
	configPath string
	dbPath     string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-mail",
	Short: "Role-addressed mailbox for async work handoff",
	Long: "A durable mailbox and task lifecycle for a fixed set of roles (User, PM, Dev, ...)\n" +
		"that cannot talk to each other directly. Text in, JSON out. SQLite-backed, single binary.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger.Setup(cfg.LogLevel)
		loadedConfig = cfg
		return nil
	},
	SilenceUsage: true,
}

var loadedConfig *config.Config

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.agent-mail/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $AGENT_MAIL_DB_PATH or ~/.agent-mail/mail.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return loadedConfig.DBPath
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func openEngine() (*mailbox.Engine, *store.SQLiteStore, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return mailbox.New(s, loadedConfig.Roles), s, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
