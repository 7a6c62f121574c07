package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortexr/agent/pkg/moderation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	Long: `Start an interactive session. Each line is solved as one task;
type "exit" or press Ctrl-D to quit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Println("Cortex-R ready. Type a task, or \"exit\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := rt.solve(ctx, line)
		switch {
		case errors.Is(err, moderation.ErrBlocked):
			fmt.Println("Sorry, I can't assist with that topic.")
		case errors.Is(err, moderation.ErrEmpty):
			fmt.Println("Could you rephrase that?")
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			fmt.Printf("Error: %v\n", err)
		default:
			fmt.Println(answer)
		}
	}
	return scanner.Err()
}
