package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nbrunner/internal/config"
	"nbrunner/internal/runner"
)

var (
	listNotebooks  string
	listRunnerFile string
)

func init() {
	listCmd.Flags().StringVar(&listNotebooks, "notebooks", ".", "Directory to scan for .ipynb files")
	listCmd.Flags().StringVar(&listRunnerFile, "runner-file", "", "Optional YAML file overriding the skip list")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which notebooks a run would execute or skip",
	Args:  cobra.NoArgs,
	RunE:  listNotebooksRun,
}

func listNotebooksRun(cmd *cobra.Command, args []string) error {
	skipList, err := config.LoadSkipList(listRunnerFile)
	if err != nil {
		return err
	}

	entries, err := runner.Discover(listNotebooks, skipList)
	if err != nil {
		return err
	}

	executed := 0
	for _, e := range entries {
		if e.Skipped {
			fmt.Fprintf(os.Stdout, "skip  %s\n", e.Path)
			continue
		}
		executed++
		fmt.Fprintf(os.Stdout, "run   %s\n", e.Path)
	}
	fmt.Fprintf(os.Stdout, "\n%d to run, %d skipped\n", executed, len(entries)-executed)
	return nil
}
