package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/udisondev/courier/checksum"
	"github.com/udisondev/courier/config"
	"github.com/udisondev/courier/engine"
	"github.com/udisondev/courier/store"
	"github.com/udisondev/courier/transport"
)

// session is what every command needs: logging, local state and an engine
// pointed at the server named in transfer.info.
type session struct {
	dir       config.Dir
	bootstrap config.Bootstrap
	stored    *config.Identity
	store     *store.Store
	engine    *engine.Engine
	logFile   *os.File
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		exitWithError("Cannot determine home directory", err)
	}
	return filepath.Join(home, ".courier")
}

// setupLogging writes logs to a timestamped file under baseDir/logs and to
// stderr.
func setupLogging(baseDir string) (*os.File, string) {
	logDir := filepath.Join(baseDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		exitWithError("Cannot create log directory", err)
	}

	logFileName := fmt.Sprintf("courier-%s.log", time.Now().Format("2006-01-02_15-04-05"))
	logPath := filepath.Join(logDir, logFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		exitWithError("Failed to open log file", err)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	return logFile, logPath
}

func openSession(sum checksum.Func) *session {
	baseDir := resolveDataDir()
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		exitWithError("Cannot create data directory", err)
	}
	logFile, logPath := setupLogging(baseDir)

	s := &session{dir: config.Dir(configDir), logFile: logFile}
	slog.Info("Starting Courier", "configDir", configDir, "dataDir", baseDir, "logfile", logPath)

	b, err := s.dir.LoadBootstrap()
	if err != nil {
		s.close()
		exitWithError("Cannot read "+config.BootstrapFile, err)
	}
	s.bootstrap = b

	id, err := s.dir.LoadIdentity()
	switch {
	case err == nil:
		s.stored = &id
		slog.Info("Found stored identity", "username", id.Username, "clientID", id.ID)
	case errors.Is(err, config.ErrNotFound):
		slog.Info("No stored identity, will register", "username", b.Username)
	default:
		// A damaged identity file is not silently replaced.
		s.close()
		exitWithError("Cannot read "+config.IdentityFile, err)
	}

	st, err := store.Open(filepath.Join(baseDir, "courier.db"))
	if err != nil {
		s.close()
		exitWithError("Failed to open database", err)
	}
	s.store = st

	tr := transport.NewTCP(b.Address)
	tr.SetTimeout(timeout)

	s.engine = engine.New(engine.Options{
		Transport:  tr,
		Checksum:   sum,
		Identities: s.dir,
		History:    st,
		Roster:     st,
		Logger:     slog.Default(),
	})
	return s
}

func (s *session) close() {
	if s.store != nil {
		s.store.Close()
	}
	s.logFile.Close()
}
