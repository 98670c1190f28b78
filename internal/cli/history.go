package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show a message's status history, oldest first",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}
	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	history, err := engine.History(cmd.Context(), args[0])
	if err != nil {
		exitErr("history", err)
	}

	b, _ := json.MarshalIndent(history, "", "  ")
	fmt.Println(string(b))
}
