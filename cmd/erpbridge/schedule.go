package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

type scheduleActionOutput struct {
	ScheduleCode string `json:"scheduleCode"`
	Status       string `json:"status"`
}

// scheduleCmd passes schedule writes straight to the ERP. A slot taken in the
// meantime surfaces as a schedule conflict error.
func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Create, confirm or cancel schedules on the ERP",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Book an availability slot for a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}
			var in entities.CreateScheduleRequest
			if err := readInput(cmd, &in); err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				receipt, err := a.erp.CreateSchedule(ctx, integration, in)
				if err != nil {
					return err
				}
				return writeOutput(cmd, receipt)
			})
		},
	}

	confirm := &cobra.Command{
		Use:   "confirm <schedule-code>",
		Short: "Confirm a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				if err := a.erp.ConfirmSchedule(ctx, integration, args[0]); err != nil {
					return err
				}
				return writeOutput(cmd, scheduleActionOutput{ScheduleCode: args[0], Status: "confirmed"})
			})
		},
	}

	var reason string
	cancel := &cobra.Command{
		Use:   "cancel <schedule-code>",
		Short: "Cancel a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				if err := a.erp.CancelSchedule(ctx, integration, args[0], reason); err != nil {
					return err
				}
				return writeOutput(cmd, scheduleActionOutput{ScheduleCode: args[0], Status: "cancelled"})
			})
		},
	}
	cancel.Flags().StringVar(&reason, "reason", "", "cancellation reason sent to the ERP")

	cmd.AddCommand(create, confirm, cancel)
	return cmd
}
