package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-mail/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the single working session",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start <role>",
			Short: "Start a session for a role",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					sess, err := t.Start(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					printJSON(sess)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "current",
			Short: "Show the active session, if any",
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					if t.Current() == nil {
						fmt.Println("null")
						return nil
					}
					printJSON(t.Current())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "switch-role <role>",
			Short: "Switch which role the session acts as",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					return t.SwitchRole(cmd.Context(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "set-message <id>",
			Short: "Point the session at the message being handled",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					return t.SetCurrentMessage(cmd.Context(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "attach <pid>",
			Short: "Attach an external process (e.g. an editor) to the session",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				pid, err := strconv.Atoi(args[0])
				if err != nil {
					exitErr("attach", err)
				}
				withTracker(cmd, func(t *session.Tracker) error {
					return t.AttachProcess(cmd.Context(), pid)
				})
			},
		},
		&cobra.Command{
			Use:   "end",
			Short: "Complete the session, asking any attached process to terminate",
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					return t.End(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Pause the session",
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					return t.Pause(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Resume a paused session",
			Run: func(cmd *cobra.Command, args []string) {
				withTracker(cmd, func(t *session.Tracker) error {
					return t.Resume(cmd.Context())
				})
			},
		},
	)

	RootCmd.AddCommand(cmd)
}

func withTracker(cmd *cobra.Command, fn func(*session.Tracker) error) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	tracker, err := session.NewTracker(cmd.Context(), s, nil)
	if err != nil {
		exitErr("session", err)
	}
	if err := fn(tracker); err != nil {
		exitErr("session", err)
	}
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
