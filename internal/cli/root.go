// Package cli implements splitctl, a terminal client for shared receipt
// sessions.
package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/config"
	"github.com/mmynk/receiptsplit/internal/identity"
	"github.com/mmynk/receiptsplit/internal/storage/sqlite"
	"github.com/mmynk/receiptsplit/internal/synchronizer"
	"github.com/mmynk/receiptsplit/pkg/logging"
)

// RootOptions holds global flags for all commands. Empty values fall back to
// the environment configuration.
type RootOptions struct {
	URL       string
	StatePath string
	LogLevel  string
}

// NewRootCommand creates the root command for splitctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "splitctl",
		Short: "Split a receipt with friends",
		Long: `splitctl creates, joins and edits shared receipt sessions.

Each device keeps its identity in a local state file: a device id, the
participant it acts as per session, and owner tokens for sessions it created.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", "", "server base URL (default $RECEIPTSPLIT_URL)")
	cmd.PersistentFlags().StringVar(&opts.StatePath, "state", "", "device state file (default $RECEIPTSPLIT_STATE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewUnclaimCommand(opts))
	cmd.AddCommand(NewAddItemCommand(opts))
	cmd.AddCommand(NewRemoveItemCommand(opts))
	cmd.AddCommand(NewAddParticipantCommand(opts))
	cmd.AddCommand(NewRenameCommand(opts))
	cmd.AddCommand(NewStepCommand(opts))
	cmd.AddCommand(NewFinalizeCommand(opts))
	cmd.AddCommand(NewReopenCommand(opts))

	return cmd
}

// app is the per-invocation wiring shared by every command.
type app struct {
	log    *slog.Logger
	store  *sqlite.LocalStore
	keeper *identity.Keeper
	client *client.Client
	sync   *synchronizer.Synchronizer
}

func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	if opts.URL != "" {
		cfg.BaseURL = opts.URL
	}
	if opts.StatePath != "" {
		cfg.StatePath = opts.StatePath
	}

	log := logging.New(cmd.ErrOrStderr(), logging.ParseLevel(opts.LogLevel))

	store, err := sqlite.OpenLocalStore(cfg.StatePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open device state", err)
	}
	log.Debug("device state opened", "path", cfg.StatePath, "server", cfg.BaseURL)

	c := client.New(&http.Client{Timeout: 30 * time.Second}, cfg.BaseURL)
	return &app{
		log:    log,
		store:  store,
		keeper: identity.NewKeeper(store),
		client: c,
		sync:   synchronizer.New(c, store, cfg.Sync(), synchronizer.WithLogger(log)),
	}, nil
}

func (a *app) Close() {
	a.sync.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close device state", "error", err)
	}
}

// load opens the app and loads sessionID into the synchronizer.
func load(cmd *cobra.Command, opts *RootOptions, sessionID string) (*app, error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return nil, err
	}
	if err := a.sync.Load(cmd.Context(), sessionID); err != nil {
		a.Close()
		return nil, callError(fmt.Sprintf("load session %s", sessionID), err)
	}
	return a, nil
}

// actor returns the participant this device acts as in the loaded session.
func (a *app) actor() (string, error) {
	v := a.sync.View()
	if v.CurrentParticipant == nil {
		return "", NewExitError(ExitCommandError, "no participant selected on this device: run join or select first")
	}
	return v.CurrentParticipant.ID, nil
}

func (a *app) render(cmd *cobra.Command) error {
	v := a.sync.View()
	current := ""
	if v.CurrentParticipant != nil {
		current = v.CurrentParticipant.ID
	}
	return Render(cmd.OutOrStdout(), v.Session, current)
}
