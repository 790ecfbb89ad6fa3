package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/router"
)

const (
	cliChannelName  = "cli"
	defaultSenderID = "+15550100"
	notHandledText  = "(not handled)"
)

var (
	sendText string
	sendFrom string
)

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Route one message or start an interactive loop",
	Long:  "Routes the given text through the configured apps and prints the replies. Without text, reads messages from stdin until exit.",
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := setupRuntime("cmd.send")
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}
		defer rt.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if text := resolveText(args); text != "" {
			result, err := routeText(ctx, rt.router, sendFrom, text)
			printResult(cmd.OutOrStdout(), result, err)
			return
		}

		runInteractive(ctx, rt.router, sendFrom, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendText, "text", "t", "", "message text to send")
	sendCmd.Flags().StringVarP(&sendFrom, "from", "f", defaultSenderID, "sender identity")
}

// resolveText prefers --text over positional arguments. The text is kept
// verbatim apart from the joining space.
func resolveText(args []string) string {
	if strings.TrimSpace(sendText) != "" {
		return sendText
	}

	value := strings.Join(args, " ")
	if strings.TrimSpace(value) == "" {
		return ""
	}

	return value
}

func routeText(ctx context.Context, rt *router.Router, from string, text string) (router.Result, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		from = defaultSenderID
	}

	return rt.Handle(ctx, bus.NewInbound(cliChannelName, from, from, text))
}

func runInteractive(ctx context.Context, rt *router.Router, from string, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "📱 ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Fprintf(out, "input error: %v\n", err)
			}
			return
		}

		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if isExitCommand(text) {
			return
		}

		result, err := routeText(ctx, rt, from, text)
		printResult(out, result, err)
	}
}

// printResult writes every reply, then the fault if any, then the
// not-handled marker when no handler accepted the message.
func printResult(out io.Writer, result router.Result, err error) {
	for _, reply := range result.Replies {
		prefix := "💬"
		if reply.IsError() {
			prefix = "⚠️"
		}
		for _, line := range replyLines(reply.Text()) {
			fmt.Fprintf(out, "%s %s\n", prefix, line)
		}
	}

	if err != nil {
		var handlerErr *router.HandlerError
		if errors.As(err, &handlerErr) {
			fmt.Fprintf(out, "handler %s failed: %v\n", handlerErr.Handler, handlerErr.Err)
		} else {
			fmt.Fprintf(out, "routing failed: %v\n", err)
		}
		return
	}

	if !result.Handled {
		fmt.Fprintln(out, notHandledText)
	}
}

func replyLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
