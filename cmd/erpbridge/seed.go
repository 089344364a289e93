package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zatekoja/erpbridge/backend/internal/adapters/database"
	"github.com/zatekoja/erpbridge/backend/internal/adapters/providers/erp"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
)

const seedEntitiesPerType = 3

// seedCmd loads a demo integration whose local records match the codes the
// mock ERP returns, so every command works against the mock end to end
func seedCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a demo integration and local entity records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			pgClient, err := postgres.NewClient(&cfg.Database)
			if err != nil {
				return err
			}
			defer pgClient.Close()

			id := integrationID
			if id == "" {
				id = "demo"
			}
			return seed(cmd.Context(), pgClient, id, reset)
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "truncate entity tables before seeding")
	return cmd
}

func seed(ctx context.Context, pgClient *postgres.Client, id string, reset bool) error {
	logger := observability.LoggerFromContext(ctx)

	if reset {
		logger.Info().Msg("Reset requested, truncating entity tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				erp_external_doctors,
				erp_entities
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			return fmt.Errorf("failed to reset tables: %w", err)
		}
	}

	integration := &entities.Integration{
		ID:      id,
		Name:    "Demo clinic",
		Type:    "mock",
		Enabled: true,
		Settings: entities.IntegrationSettings{
			MaxAvailabilitySpanDays:     10,
			ExternalDoctorsEnabled:      true,
			AvailabilityCacheTTLSeconds: 300,
			Timezone:                    "UTC",
		},
	}
	if err := database.NewIntegrationAdapter(pgClient).Upsert(ctx, integration); err != nil {
		return fmt.Errorf("failed to seed integration: %w", err)
	}

	store := database.NewEntityAdapter(pgClient)
	seeded := 0
	for _, entityType := range entities.AllEntityTypes {
		for i := 1; i <= seedEntitiesPerType; i++ {
			entity := entities.NewEntity(id, entityType, erp.MockEntityCode(entityType, i), fmt.Sprintf("Demo %s %d", entityType, i))
			if entityType == entities.EntityTypeAppointmentType {
				entity.Params.ScheduleType = entities.ScheduleTypeConsultation
				if i == seedEntitiesPerType {
					entity.Params.ScheduleType = entities.ScheduleTypeExam
				}
			}
			// the last doctor is hidden so visibility rules have something to drop
			if entityType == entities.EntityTypeDoctor && i == seedEntitiesPerType {
				entity.CanView = false
			}

			if err := store.Upsert(ctx, entity); err != nil {
				logger.Warn().Err(err).Str("code", entity.Code).Msg("Failed to seed entity")
				continue
			}
			seeded++
		}
	}

	logger.Info().Str("integration_id", id).Int("entities", seeded).Msg("Seeding completed")
	return nil
}
