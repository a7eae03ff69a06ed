package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parley-agents/parley/pkg/api"
)

var (
	sendURL    string
	sendSender string
	sendBlock  bool
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a message to an agent and watch the negotiation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendURL, "url", "u", "http://localhost:10001", "Agent base URL")
	sendCmd.Flags().StringVarP(&sendSender, "sender", "s", "user", "Sender name")
	sendCmd.Flags().BoolVar(&sendBlock, "no-stream", false, "Wait for the final answer without streaming updates")
}

func runSend(cmd *cobra.Command, args []string) error {
	client := api.NewClient(sendURL)
	ctx := cmd.Context()

	if sendBlock {
		task, err := client.SendMessage(ctx, args[0], sendSender)
		if err != nil {
			return err
		}
		color.Green("%s", task.Result)
		return nil
	}

	final, err := client.SendMessageStream(ctx, args[0], sendSender, func(u api.StatusUpdate) {
		if u.Final {
			return
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString(u.FromTo()), u.Text)
	})
	if err != nil {
		return err
	}
	color.Green("%s", final.Text)
	return nil
}
