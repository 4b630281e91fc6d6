package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/udisondev/courier/checksum"
	"github.com/udisondev/courier/engine"
)

func runTransfer(cmd *cobra.Command, args []string) {
	sum, err := checksum.ByName(checksumName)
	if err != nil {
		exitWithError("Invalid --checksum", err)
	}

	s := openSession(sum)
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = s.engine.Run(ctx, s.bootstrap, s.stored)
	self := s.engine.Identity()

	switch {
	case err == nil:
		fmt.Println(successStyle.Render("✓ Transfer verified"))
		printField("File", s.bootstrap.FilePath)
		printField("Client", fmt.Sprintf("%s (%s)", self.Username, self.ID))
	case engine.IsKind(err, engine.KindIntegrity):
		// The run completed; the server never confirmed the content.
		fmt.Println(warnStyle.Render("! Transfer aborted"))
		printField("File", s.bootstrap.FilePath)
		printField("Reason", s.engine.LastError())
		s.close()
		os.Exit(2)
	default:
		s.close()
		exitWithError("Transfer failed", err)
	}
}
