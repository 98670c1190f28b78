package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump all messages with their history as JSONL",
		Run:   runExport,
	}
	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	exported, err := s.Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	for _, e := range exported {
		b, _ := json.Marshal(e)
		fmt.Println(string(b))
	}
}
