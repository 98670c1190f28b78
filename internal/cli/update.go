package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-mail/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update-status <id>",
		Short: "Move a message to a new status",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdateStatus,
	}

	cmd.Flags().StringP("role", "r", "", "Acting role (required)")
	cmd.Flags().StringP("status", "s", "", "New status: unread, processing, replied, completed, archived (required)")
	cmd.Flags().StringP("note", "n", "", "Audit note")

	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("status")

	RootCmd.AddCommand(cmd)
}

func runUpdateStatus(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	status, _ := cmd.Flags().GetString("status")
	note, _ := cmd.Flags().GetString("note")

	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := engine.UpdateStatus(cmd.Context(), role, args[0], model.Status(status), note); err != nil {
		exitErr("update-status", err)
	}

	b, _ := json.Marshal(map[string]string{"id": args[0], "status": status})
	fmt.Println(string(b))
}
