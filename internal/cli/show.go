package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one message in full",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}
	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	msg, err := engine.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}

	b, _ := json.MarshalIndent(msg, "", "  ")
	fmt.Println(string(b))
}
