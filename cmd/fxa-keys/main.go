// fxa-keys es el CLI operacional del key ring del issuer.
//
// Las tres transiciones (prepare/activate/retire) son single-writer: si hay
// más de un operador o una automatización, la exclusión mutua va por fuera
// (file lock, leader election). Cada comando imprime qué cambió.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arku/fxa/internal/config"
	"github.com/arku/fxa/internal/keys"
	"github.com/arku/fxa/internal/observability/logger"
)

func main() {
	var (
		flagConfig  string
		flagEnvFile string
	)

	root := &cobra.Command{
		Use:           "fxa-keys",
		Short:         "Rotación del signing key ring (prepare → activate → retire)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagEnvFile != "" {
				_ = godotenv.Load(flagEnvFile)
			}
			logger.Init(logger.Config{Env: "dev", Level: "warn", ServiceName: "fxa-keys"})
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "configs/config.yaml", "ruta a config.yaml")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "ruta a .env")

	root.AddCommand(
		&cobra.Command{
			Use:   "prepare",
			Short: "Genera una clave nueva y la deja como pending (falla si ya hay una)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRotator(flagConfig, func(ctx context.Context, r *keys.Rotator) error {
					ch, err := r.Prepare(ctx)
					if errors.Is(err, keys.ErrAlreadyPending) {
						return fmt.Errorf("ya existe una pending key sin activar; activate o descártela a mano antes de volver a prepare")
					}
					if err != nil {
						return err
					}
					fmt.Printf("Prepared. pending=%s active=%s\n", ch.Pending, orNone(ch.Active))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "activate",
			Short: "Promueve pending a active; el ex-active pasa a retiring (solo pública)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRotator(flagConfig, func(ctx context.Context, r *keys.Rotator) error {
					ch, err := r.Activate(ctx)
					if errors.Is(err, keys.ErrNoPendingKey) {
						return fmt.Errorf("no hay pending key; corra prepare primero")
					}
					if err != nil {
						return err
					}
					if ch.Dropped != "" {
						fmt.Printf("Activated. active=%s retiring=%s (private material of %s discarded)\n",
							ch.Active, ch.Retiring, ch.Dropped)
					} else {
						fmt.Printf("Activated first key. active=%s\n", ch.Active)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "retire",
			Short: "Limpia el slot retiring (idempotente)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRotator(flagConfig, func(ctx context.Context, r *keys.Rotator) error {
					ch, err := r.Retire(ctx)
					if err != nil {
						return err
					}
					if ch.Dropped == "" {
						fmt.Println("Nothing to retire.")
					} else {
						fmt.Printf("Retired. dropped=%s active=%s\n", ch.Dropped, ch.Active)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Muestra los kids de los tres slots",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRotator(flagConfig, func(ctx context.Context, r *keys.Rotator) error {
					ch, err := r.Status(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("active:   %s\npending:  %s\nretiring: %s\n",
						orNone(ch.Active), orNone(ch.Pending), orNone(ch.Retiring))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "gen-master-key",
			Short: "Genera una clave base64 de 32 bytes para SIGNING_MASTER_KEY",
			RunE: func(cmd *cobra.Command, args []string) error {
				key := make([]byte, 32)
				if _, err := rand.Read(key); err != nil {
					return fmt.Errorf("generate key: %w", err)
				}
				fmt.Printf("SIGNING_MASTER_KEY=%s\n", base64.StdEncoding.EncodeToString(key))
				return nil
			},
		},
		&cobra.Command{
			Use:   "gen-salt",
			Short: "Genera una salt hex de 32 bytes para PPID_SALT",
			RunE: func(cmd *cobra.Command, args []string) error {
				salt := make([]byte, 32)
				if _, err := rand.Read(salt); err != nil {
					return fmt.Errorf("generate salt: %w", err)
				}
				fmt.Printf("PPID_SALT=%s\n", hex.EncodeToString(salt))
				return nil
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withRotator arma store+rotator desde config y corre fn con cleanup.
func withRotator(configPath string, fn func(context.Context, *keys.Rotator) error) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	masterKey, err := cfg.MasterKey()
	if err != nil {
		return err
	}

	var store keys.RingStore
	cleanup := func() {}
	switch cfg.Keys.Store {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Keys.DSN)
		if err != nil {
			return err
		}
		store = keys.NewPGRingStore(pool, masterKey)
		cleanup = pool.Close
	default:
		fsStore, err := keys.NewFSRingStore(cfg.Keys.Dir, masterKey)
		if err != nil {
			return err
		}
		store = fsStore
	}
	defer cleanup()

	return fn(ctx, keys.NewRotator(store, keys.NewGenerator(cfg.Keys.Bits)))
}

func orNone(kid string) string {
	if kid == "" {
		return "(none)"
	}
	return kid
}
