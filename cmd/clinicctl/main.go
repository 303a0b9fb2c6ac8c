package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/dental-clinic-scheduling/internal/appointment"
	"github.com/hackgods/dental-clinic-scheduling/internal/config"
	"github.com/hackgods/dental-clinic-scheduling/internal/db"
	"github.com/hackgods/dental-clinic-scheduling/internal/logging"
	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

type env struct {
	cfg    config.Config
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Operational tooling for the clinic scheduling database",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(validateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "clinicctl")

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, pool: pool, logger: logger}, nil
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Create tables and overlap constraints if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			if err := db.ApplySchema(cmd.Context(), e.pool); err != nil {
				return err
			}
			e.logger.Info().Msg("schema applied")
			return nil
		},
	})
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with fake professionals, rooms, patients and plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			professionals, _ := cmd.Flags().GetInt("professionals")
			rooms, _ := cmd.Flags().GetInt("rooms")
			patients, _ := cmd.Flags().GetInt("patients")

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			s := newSeeder(e.pool, e.logger)
			return s.Run(cmd.Context(), professionals, rooms, patients)
		},
	}
	cmd.Flags().Int("professionals", 10, "Number of professionals")
	cmd.Flags().Int("rooms", 4, "Number of rooms")
	cmd.Flags().Int("patients", 1000, "Number of patients")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the scheduling validator against a proposed slot without booking it",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetInt64("patient")
			professional, _ := cmd.Flags().GetInt64("professional")
			room, _ := cmd.Flags().GetInt64("room")
			startRaw, _ := cmd.Flags().GetString("start")
			duration, _ := cmd.Flags().GetInt("duration")
			procedure, _ := cmd.Flags().GetString("procedure")
			followUp, _ := cmd.Flags().GetBool("follow-up")

			start, err := time.Parse(time.RFC3339, startRaw)
			if err != nil {
				return fmt.Errorf("--start must be RFC3339: %w", err)
			}

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			repo := appointment.NewPgRepository(e.pool)
			result, err := appointment.NewValidator(repo, e.cfg).Validate(cmd.Context(), scheduling.Request{
				PatientID:       patient,
				ProfessionalID:  professional,
				RoomID:          room,
				Start:           start,
				DurationMinutes: duration,
				ProcedureType:   procedure,
				IncludeFollowUp: followUp,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Accepted {
				return fmt.Errorf("slot rejected with %d violation(s)", len(result.Violations))
			}
			return nil
		},
	}
	cmd.Flags().Int64("patient", 0, "Patient ID")
	cmd.Flags().Int64("professional", 0, "Professional ID")
	cmd.Flags().Int64("room", 0, "Room ID")
	cmd.Flags().String("start", "", "Start instant, RFC3339")
	cmd.Flags().Int("duration", 30, "Duration in minutes")
	cmd.Flags().String("procedure", "", "Procedure type")
	cmd.Flags().Bool("follow-up", false, "Include treatment-plan follow-up context")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("professional")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}
