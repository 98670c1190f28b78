package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall <id>",
		Short: "Recall an unread message you sent",
		Args:  cobra.ExactArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().String("from", "", "Sender role (required)")
	cmd.MarkFlagRequired("from")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetString("from")

	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := engine.Recall(cmd.Context(), from, args[0]); err != nil {
		exitErr("recall", err)
	}

	b, _ := json.Marshal(map[string]string{"id": args[0], "status": "recalled"})
	fmt.Println(string(b))
}
