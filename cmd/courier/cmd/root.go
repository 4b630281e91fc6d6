package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/udisondev/courier/checksum"
)

var (
	configDir    string
	dataDir      string
	timeout      time.Duration
	checksumName string
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier - encrypted file delivery client",
	Long: `Courier registers with a directory server, exchanges keys and uploads
the file named in transfer.info, resending it until the server's checksum
matches or the retries run out.

By default, running 'courier' performs the transfer.
Use 'courier clients' to list registered clients.`,
	Args: cobra.NoArgs,
	Run:  runTransfer,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "Directory with transfer.info, me.info and priv.key")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "Directory for logs and local state (default: ~/.courier)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "Timeout for each server exchange (0 waits indefinitely)")
	rootCmd.Flags().StringVar(&checksumName, "checksum", checksum.NameCksum, "Checksum compared with the server's (cksum or sum)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func exitWithError(msg string, err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("✗ %s: %v", msg, err)))
	os.Exit(1)
}
