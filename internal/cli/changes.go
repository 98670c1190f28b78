package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Check whether anything happened since the last seen change id",
		Long:  "Poll the change log. Persist the returned newest_id and pass it back as --last-id on the next call.",
		Run:   runChanges,
	}

	cmd.Flags().Int64P("last-id", "l", 0, "Last change id this caller observed")

	RootCmd.AddCommand(cmd)
}

func runChanges(cmd *cobra.Command, args []string) {
	lastID, _ := cmd.Flags().GetInt64("last-id")

	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	changed, newest, err := engine.PollChanges(cmd.Context(), lastID)
	if err != nil {
		exitErr("changes", err)
	}

	b, _ := json.Marshal(map[string]interface{}{"changed": changed, "newest_id": newest})
	fmt.Println(string(b))
}
