// Package webhookcmd manages the event webhook registered for the app.
package webhookcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgtobi/netatmo-api-go/cmd/netatmo/internal/cli"
)

// NewWebhookCmd creates the webhook command with its subcommands.
func NewWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the camera event webhook",
		Long: `Manage the webhook Netatmo calls when a camera or smoke detector
raises an event. Only one webhook can be registered per application;
adding a new URL replaces the previous one.`,
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newDropCmd())

	return cmd
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add URL",
		Short: "Register a webhook URL for camera events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, "")
			if err != nil {
				return err
			}
			if err := sess.RequireAuth(); err != nil {
				return err
			}

			if err := sess.Manager.AddWebhook(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Printf("✓ Webhook registered: %s\n", args[0])
			return nil
		},
	}
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Remove the registered webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, "")
			if err != nil {
				return err
			}
			if err := sess.RequireAuth(); err != nil {
				return err
			}

			if err := sess.Manager.DropWebhook(cmd.Context()); err != nil {
				return err
			}

			fmt.Println("✓ Webhook removed")
			return nil
		},
	}
}
