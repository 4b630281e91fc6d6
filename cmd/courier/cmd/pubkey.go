package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/udisondev/courier/checksum"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey [username]",
	Short: "Fetch the public key of a registered client",
	Long: `Fetch the public key of a registered client.

Without a username an interactive list of the registered clients is shown.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPubkey,
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)
}

func runPubkey(cmd *cobra.Command, args []string) {
	s := openSession(checksum.Cksum)
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := s.engine.Authenticate(ctx, s.bootstrap.Username, s.stored); err != nil {
		s.close()
		exitWithError("Authentication failed", err)
	}
	if _, err := s.engine.ClientsList(ctx); err != nil {
		s.close()
		exitWithError("Cannot list clients", err)
	}

	var username string
	if len(args) == 1 {
		username = args[0]
	} else {
		picked, err := pickPeer(s.engine.Usernames())
		if err != nil {
			s.close()
			exitWithError("Cannot select client", err)
		}
		username = picked
	}

	peer, err := s.engine.PublicKeyOf(ctx, username)
	if err != nil {
		s.close()
		exitWithError("Cannot fetch public key", err)
	}

	fmt.Println(titleStyle.Render("Public key of " + peer.Username))
	printField("Client", peer.ID.String())
	fmt.Println(base64.StdEncoding.EncodeToString(peer.PublicKey[:]))
}
