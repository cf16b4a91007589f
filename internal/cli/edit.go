package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/models"
)

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	var forID string
	cmd := &cobra.Command{
		Use:   "claim <session-id> <key> [quantity]",
		Short: "Claim an item or one unit of it",
		Long: `Claim an item (key = item id) or one physical unit of it
(key = <item-id>_unit_<index>). The quantity defaults to 1; 0 clears the claim.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity := 1.0
			if len(args) == 3 {
				q, err := strconv.ParseFloat(args[2], 64)
				if err != nil {
					return WrapExitError(ExitCommandError, "parse quantity", err)
				}
				quantity = q
			}
			return runClaim(cmd, rootOpts, args[0], args[1], forID, quantity)
		},
	}
	cmd.Flags().StringVar(&forID, "for", "", "participant id to claim for (default: this device's participant)")
	return cmd
}

// NewUnclaimCommand creates the unclaim command.
func NewUnclaimCommand(rootOpts *RootOptions) *cobra.Command {
	var forID string
	cmd := &cobra.Command{
		Use:   "unclaim <session-id> <key>",
		Short: "Drop a claim",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(cmd, rootOpts, args[0], args[1], forID, 0)
		},
	}
	cmd.Flags().StringVar(&forID, "for", "", "participant id to unclaim for (default: this device's participant)")
	return cmd
}

func runClaim(cmd *cobra.Command, opts *RootOptions, sessionID, key, participantID string, quantity float64) error {
	a, err := load(cmd, opts, sessionID)
	if err != nil {
		return err
	}
	defer a.Close()

	if participantID == "" {
		if participantID, err = a.actor(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if err := a.sync.Assign(ctx, key, participantID, quantity); err != nil {
		return WrapExitError(ExitCommandError, "claim", err)
	}
	a.sync.Wait()

	// Claims are fire-and-forget: reload to learn whether the server kept it.
	if err := a.sync.Load(ctx, sessionID); err != nil {
		return callError("reload session", err)
	}
	got := a.sync.View().Session.Assignments.Quantity(key, participantID)
	if got != quantity {
		return NewExitError(ExitFailure, fmt.Sprintf("claim on %s was not applied by the server", key))
	}
	return a.render(cmd)
}

// NewAddItemCommand creates the add-item command.
func NewAddItemCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name     string
		price    float64
		quantity int
		mode     string
	)
	cmd := &cobra.Command{
		Use:   "add-item <session-id>",
		Short: "Add a receipt line (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerAction(cmd, rootOpts, args[0], "add item", func(a *app) client.Result {
				return a.sync.AddItem(cmd.Context(), models.Item{
					Name:     name,
					Price:    price,
					Quantity: quantity,
					Mode:     models.ItemMode(mode),
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().Float64Var(&price, "price", 0, "unit price")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "number of units")
	cmd.Flags().StringVar(&mode, "mode", string(models.ModeIndividual), "individual|grouped")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// NewRemoveItemCommand creates the remove-item command.
func NewRemoveItemCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-item <session-id> <item-id>",
		Short: "Delete a receipt line and its claims (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerAction(cmd, rootOpts, args[0], "remove item", func(a *app) client.Result {
				return a.sync.DeleteItem(cmd.Context(), args[1])
			})
		},
	}
}

// NewAddParticipantCommand creates the add-participant command.
func NewAddParticipantCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-participant <session-id> <name>",
		Short: "Add someone without a device (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerAction(cmd, rootOpts, args[0], "add participant", func(a *app) client.Result {
				return a.sync.AddParticipant(cmd.Context(), args[1])
			})
		},
	}
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <session-id>",
		Short: "Freeze assignments for everyone but the owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerAction(cmd, rootOpts, args[0], "finalize", func(a *app) client.Result {
				return a.sync.Finalize(cmd.Context())
			})
		},
	}
}

// NewReopenCommand creates the reopen command.
func NewReopenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <session-id>",
		Short: "Allow participants to claim again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerAction(cmd, rootOpts, args[0], "reopen", func(a *app) client.Result {
				return a.sync.Reopen(cmd.Context())
			})
		},
	}
}

func ownerAction(cmd *cobra.Command, opts *RootOptions, sessionID, action string, do func(*app) client.Result) error {
	a, err := load(cmd, opts, sessionID)
	if err != nil {
		return err
	}
	defer a.Close()

	res := do(a)
	if err := resultError(action, res); err != nil {
		return err
	}
	if res.ID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action, res.ID)
	}
	return a.render(cmd)
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <participant-id> <name>",
		Short: "Rename a participant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return bestEffortAction(cmd, rootOpts, args[0], "rename", func(a *app) error {
				return a.sync.RenameParticipant(cmd.Context(), args[1], args[2])
			})
		},
	}
}

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "step <session-id> <1-3>",
		Short: "Tell guests which screen the host is on (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "parse step", err)
			}
			return bestEffortAction(cmd, rootOpts, args[0], "step", func(a *app) error {
				return a.sync.UpdateHostStep(cmd.Context(), step)
			})
		},
	}
}

func bestEffortAction(cmd *cobra.Command, opts *RootOptions, sessionID, action string, do func(*app) error) error {
	a, err := load(cmd, opts, sessionID)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := do(a); err != nil {
		return WrapExitError(ExitCommandError, action, err)
	}
	a.sync.Wait()
	return a.render(cmd)
}
