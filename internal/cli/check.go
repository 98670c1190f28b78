package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-mail/internal/mailbox"
	"github.com/rcliao/agent-mail/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a role's messages",
		Long:  "List a role's active messages, newest first. Completed and archived are excluded; replied too unless --include-replied.",
		Run:   runCheck,
	}

	cmd.Flags().StringP("role", "r", "", "Role to check (required)")
	cmd.Flags().StringP("status", "s", "", "Filter to one status (overrides the default exclusions)")
	cmd.Flags().Bool("include-sent", false, "Also list messages this role sent")
	cmd.Flags().Bool("include-replied", false, "Keep replied messages in the listing")
	cmd.Flags().Bool("detail", false, "Full JSON per message instead of the one-line summary")

	cmd.MarkFlagRequired("role")

	RootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	status, _ := cmd.Flags().GetString("status")
	includeSent, _ := cmd.Flags().GetBool("include-sent")
	includeReplied, _ := cmd.Flags().GetBool("include-replied")
	detail, _ := cmd.Flags().GetBool("detail")

	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	messages, err := engine.List(cmd.Context(), mailbox.ListParams{
		Role:           role,
		Status:         model.Status(status),
		IncludeSent:    includeSent,
		IncludeReplied: includeReplied,
	})
	if err != nil {
		exitErr("check", err)
	}

	if detail {
		b, _ := json.MarshalIndent(messages, "", "  ")
		fmt.Println(string(b))
		return
	}
	for _, m := range messages {
		fmt.Printf("%s|%s|%s|%s|%s\n", m.ID, m.FromRole, m.ToRole, m.Status, m.Subject)
	}
}
