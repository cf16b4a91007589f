package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/identity"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <receipt.yaml>",
		Short: "Create a session from a receipt file",
		Long: `Create a session from a YAML receipt file.

The device becomes the session owner: the owner token is kept in the
device state and the device acts as the owner participant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, rootOpts, args[0])
		},
	}
}

func runCreate(cmd *cobra.Command, opts *RootOptions, path string) error {
	receipt, err := LoadReceiptFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read receipt", err)
	}

	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	deviceID, err := a.keeper.DeviceID(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "device id", err)
	}

	created, err := a.client.CreateSession(ctx, client.Auth{DeviceID: deviceID}, receipt.NewSession())
	if err != nil {
		return callError("create session", err)
	}
	sessionID := created.Session.ID

	if err := a.sync.AdoptOwnerToken(ctx, sessionID, created.OwnerToken); err != nil {
		return WrapExitError(ExitFailure, "save owner token", err)
	}
	if err := a.keeper.SavePointer(ctx, sessionID, identity.Pointer{ParticipantID: created.OwnerID, Name: receipt.Owner}); err != nil {
		a.log.Warn("failed to save participant pointer", "session_id", sessionID, "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created session %s\n", sessionID)
	fmt.Fprintf(cmd.OutOrStdout(), "You are %s (owner, %s)\n", receipt.Owner, created.OwnerID)
	return nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the session and every participant's share",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()
			return a.render(cmd)
		},
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Poll the session and reprint it on every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			a.sync.Start(ctx)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-a.sync.Updates():
					if err := a.render(cmd); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout())
				}
			}
		},
	}
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join <session-id> <name>",
		Short: "Join a session as a new participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if err := resultError("join", a.sync.Join(cmd.Context(), args[1])); err != nil {
				return err
			}
			return printIdentity(cmd, a)
		},
	}
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <session-id> <participant-id>",
		Short: "Act as an existing participant on this device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if err := resultError("select participant", a.sync.SelectParticipant(cmd.Context(), args[1])); err != nil {
				return err
			}
			return printIdentity(cmd, a)
		},
	}
}

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <session-id>",
		Short: "Stop acting as a participant on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sync.ForgetIdentity(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "forget identity", err)
			}
			return printIdentity(cmd, a)
		},
	}
}

func printIdentity(cmd *cobra.Command, a *app) error {
	v := a.sync.View()
	if v.CurrentParticipant == nil {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No participant selected")
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "You are %s (%s)\n", v.CurrentParticipant.Name, v.CurrentParticipant.ID)
	return err
}
