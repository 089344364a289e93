package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/erpbridge/backend/internal/application/services"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
	"github.com/zatekoja/erpbridge/backend/pkg/config"
	"github.com/zatekoja/erpbridge/backend/pkg/secrets"
)

type entitiesInput struct {
	EntityType entities.EntityType        `json:"entityType"`
	Filter     entities.CorrelationFilter `json:"filter"`
	UseCache   *bool                      `json:"useCache,omitempty"`
	Patient    *entities.PatientContext   `json:"patient,omitempty"`
}

type availabilityOutput struct {
	Slots    []*entities.ResolvedSlot       `json:"slots"`
	Metadata *entities.AvailabilityMetadata `json:"metadata"`
}

type confirmationsInput struct {
	Schedules      []entities.RawSchedule `json:"schedules"`
	MaxConfirmable int                    `json:"maxConfirmable,omitempty"`
}

var (
	integrationID string
	inputPath     string
	pretty        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "erpbridge",
		Short:        "Resolve ERP entities, availability and confirmations",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&integrationID, "integration", "i", "", "integration id")
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "f", "-", "JSON request file, - for stdin")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "indent JSON output")

	rootCmd.AddCommand(entitiesCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(confirmationsCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(warmCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run loads configuration, wires the engine and calls fn with a context
// cancelled on SIGINT or SIGTERM
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}()

	return fn(ctx, a)
}

// loadConfig exports Vault secrets into the environment when enabled, then
// reads configuration and sets up logging
func loadConfig(ctx context.Context) (*config.Config, error) {
	vault, vaultErr := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger(cfg.Log.ServiceName, cfg.Log.Env, cfg.Log.Level)

	if vaultErr != nil {
		log.Warn().Err(vaultErr).Str("path", vault.Path).Msg("Failed to load Vault secrets, using environment only")
	} else if vault.Loaded > 0 || vault.Skipped > 0 {
		log.Info().Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("Loaded Vault secrets")
	}
	return cfg, nil
}

func requireIntegration() error {
	if integrationID == "" {
		return fmt.Errorf("--integration is required")
	}
	return nil
}

func entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "Resolve the entities of one type for a correlation filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}
			var in entitiesInput
			if err := readInput(cmd, &in); err != nil {
				return err
			}
			useCache := in.UseCache == nil || *in.UseCache

			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				list, err := a.correlation.Resolve(ctx, integration, in.EntityType, in.Filter, useCache, in.Patient)
				if err != nil {
					return err
				}
				return writeOutput(cmd, list)
			})
		},
	}
}

func availabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "availability",
		Short: "List available slots for an availability request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}
			var in entities.AvailabilityRequest
			if err := readInput(cmd, &in); err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				slots, meta, err := a.availability.ListAvailable(ctx, integration, in)
				if err != nil {
					return err
				}
				return writeOutput(cmd, availabilityOutput{Slots: slots, Metadata: meta})
			})
		},
	}
}

func confirmationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirmations",
		Short: "Split a batch of schedules by confirmation eligibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}
			var in confirmationsInput
			if err := readInput(cmd, &in); err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				batch, err := a.confirmations.BuildConfirmations(ctx, integration, in.Schedules, services.ConfirmationOptions{
					MaxConfirmable: in.MaxConfirmable,
				})
				if err != nil {
					return err
				}
				return writeOutput(cmd, batch)
			})
		},
	}
}

func warmCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Refresh cached reference listings of an integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIntegration(); err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, a *app) error {
				integration, err := a.integration(ctx, integrationID)
				if err != nil {
					return err
				}
				if every <= 0 {
					warmed, err := a.warmer.WarmIntegration(ctx, integration)
					log.Info().Int("warmed", warmed).Msg("Cache warming finished")
					return err
				}

				a.warmer.StartPeriodicWarming(ctx, []*entities.Integration{integration}, every)
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "keep running and warm on this interval")
	return cmd
}

func readInput(cmd *cobra.Command, out any) error {
	var r io.Reader = cmd.InOrStdin()
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

func writeOutput(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
