package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete completed messages",
		Long:  "Purge completed messages with their audit trail. Archived messages are kept unless --archived.",
		Run:   runCleanup,
	}

	cmd.Flags().Bool("archived", false, "Also purge archived messages")

	RootCmd.AddCommand(cmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	archived, _ := cmd.Flags().GetBool("archived")

	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	count, err := engine.DeleteCompleted(cmd.Context(), archived)
	if err != nil {
		exitErr("cleanup", err)
	}

	b, _ := json.Marshal(map[string]int{"deleted": count})
	fmt.Println(string(b))
}
