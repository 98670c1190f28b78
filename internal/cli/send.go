package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-mail/internal/mailbox"
)

func init() {
	cmd := &cobra.Command{
		Use:   "send [content]",
		Short: "Send a message to a role",
		Long:  "Send a message. Content can be a positional arg or piped via stdin.",
		Run:   runSend,
	}

	cmd.Flags().String("from", "", "Sender role (required)")
	cmd.Flags().String("to", "", "Recipient role (required)")
	cmd.Flags().StringP("subject", "s", "", "Subject (required)")
	cmd.Flags().String("reply-to", "", "Id of the message being replied to")

	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("subject")

	RootCmd.AddCommand(cmd)
}

func runSend(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	subject, _ := cmd.Flags().GetString("subject")
	replyTo, _ := cmd.Flags().GetString("reply-to")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("send", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	engine, s, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	msg, err := engine.Send(cmd.Context(), mailbox.SendParams{
		From:    from,
		To:      to,
		Subject: subject,
		Content: strings.TrimSpace(content),
		ReplyTo: replyTo,
	})
	if err != nil {
		exitErr("send", err)
	}

	b, _ := json.Marshal(msg)
	fmt.Println(string(b))
}
