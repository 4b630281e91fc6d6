package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/udisondev/courier/checksum"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List clients registered with the server",
	Args:  cobra.NoArgs,
	Run:   runClients,
}

func init() {
	rootCmd.AddCommand(clientsCmd)
}

func runClients(cmd *cobra.Command, args []string) {
	s := openSession(checksum.Cksum)
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := s.engine.Authenticate(ctx, s.bootstrap.Username, s.stored); err != nil {
		s.close()
		exitWithError("Authentication failed", err)
	}

	peers, err := s.engine.ClientsList(ctx)
	if err != nil {
		s.close()
		exitWithError("Cannot list clients", err)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Clients (%d)", len(peers))))
	for _, p := range peers {
		fmt.Printf("  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-20s", p.Username)), idStyle.Render(p.ID.String()))
	}
}
