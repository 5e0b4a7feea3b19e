// recruitctl is the admin CLI of the recruiting pipeline: phase control and
// interview slot configuration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/calendar"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/config"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/db"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/logger"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/store/postgres"
)

// CLI is the command tree.
type CLI struct {
	Version kong.VersionFlag

	Phase struct {
		Show PhaseShowCmd `cmd:"" help:"Print the current recruiting phase."`
		Set  PhaseSetCmd  `cmd:"" help:"Set the recruiting phase."`
	} `cmd:"" help:"Recruiting phase."`

	Slots struct {
		Import  SlotsImportCmd  `cmd:"" help:"Upsert slot configurations from a yaml file."`
		List    SlotsListCmd    `cmd:"" help:"List slot configurations."`
		Preview SlotsPreviewCmd `cmd:"" help:"Show the slots an applicant would be offered."`
	} `cmd:"" help:"Interview slot configuration."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("recruitctl"),
		kong.Description("Admin CLI for the recruiting pipeline"),
		kong.UsageOnError(),
		kong.Vars{"version": "v1.0.0"},
	)

	cfg, err := config.LoadForCLI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, "console")
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := postgres.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := &Context{
		Ctx:     ctx,
		Backend: store,
		Catalog: cfg.Catalog,
		Horizon: cfg.BookingHorizonDays,
		Out:     os.Stdout,
		Log:     log,
	}
	if cfg.CalendarCredentialsFile != "" {
		cal, err := calendar.New(ctx, cfg.CalendarTimeout, option.WithCredentialsFile(cfg.CalendarCredentialsFile))
		if err != nil {
			log.Warn("calendar client unavailable; previews ignore calendar busy times", zap.Error(err))
		} else {
			app.Calendar = cal
		}
	}

	if err := kctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
