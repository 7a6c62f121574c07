package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools discovered from configured servers",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(context.Background())
	if err != nil {
		return err
	}
	defer rt.close()

	tools := rt.dispatcher.Tools()
	if len(tools) == 0 {
		fmt.Println("No tools discovered.")
		return nil
	}

	for _, tool := range tools {
		fmt.Printf("%-24s %-12s %s\n", tool.Name, tool.ServerID, tool.Description)
	}
	fmt.Printf("\n%d tools across %d servers\n", len(tools), len(rt.dispatcher.Servers()))
	return nil
}
