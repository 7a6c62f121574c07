package cli

import (
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

var askCmd = &cobra.Command{
	Use:   "ask [task]",
	Short: "Solve a single task and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	answer, err := rt.solve(ctx, strings.Join(args, " "))
	if errors.Is(err, moderation.ErrBlocked) || errors.Is(err, moderation.ErrEmpty) {
		return fmt.Errorf("input rejected: %w", err)
	}
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}
