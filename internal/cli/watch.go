package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-mail/internal/watch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the single-owner change poll loop",
		Long: "Poll the change log on a fixed interval and log every advance. Exactly one\n" +
			"watcher runs per deployment (guarded by a file lock); push fan-out layers on top.",
		Run: runWatch,
	}

	cmd.Flags().String("interval", "", "Poll interval (default from config, 1s)")

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	interval := loadedConfig.WatchInterval()
	if flagVal, _ := cmd.Flags().GetString("interval"); flagVal != "" {
		loadedConfig.Watch.Interval = flagVal
		interval = loadedConfig.WatchInterval()
	}

	w, err := watch.New(engine, watch.Options{
		Interval:          interval,
		StatePath:         loadedConfig.Watch.StatePath,
		LockPath:          loadedConfig.Watch.LockPath,
		RetentionSchedule: loadedConfig.Watch.RetentionSchedule,
		RetentionArchived: loadedConfig.Watch.RetentionArchived,
	})
	if err != nil {
		exitErr("watch", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		exitErr("watch", err)
	}
}
