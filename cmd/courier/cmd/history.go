package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/udisondev/courier/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past transfers",
	Args:  cobra.NoArgs,
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of transfers to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	baseDir := resolveDataDir()
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		exitWithError("Cannot create data directory", err)
	}

	st, err := store.Open(filepath.Join(baseDir, "courier.db"))
	if err != nil {
		exitWithError("Failed to open database", err)
	}
	defer st.Close()

	transfers, err := st.Transfers(context.Background(), historyLimit)
	if err != nil {
		st.Close()
		exitWithError("Cannot read history", err)
	}
	if len(transfers) == 0 {
		fmt.Fprintln(os.Stderr, idStyle.Render("No transfers yet"))
		return
	}

	fmt.Println(titleStyle.Render("Transfers"))
	for _, t := range transfers {
		fmt.Printf("  %s  %-8s  %s  %d bytes, %d attempt(s)\n",
			idStyle.Render(t.StartedAt.Format("2006-01-02 15:04:05")),
			statusStyle(t.Status).Render(t.Status),
			nameStyle.Render(t.FileName),
			t.FileSize,
			t.Attempts)
	}
}
