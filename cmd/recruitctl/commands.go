package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/store/memstore"
)

// Backend is the storage the commands operate on.
type Backend interface {
	pipeline.Repository
	pipeline.PhaseStore
	slots.ConfigStore
}

// Context is passed to every command's Run.
type Context struct {
	Ctx      context.Context
	Backend  Backend
	Catalog  pipeline.Catalog
	Calendar booking.Calendar // nil: previews use stored bookings only
	Horizon  int
	Out      io.Writer
	Log      *zap.Logger
	Now      func() time.Time
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// operator is the identity recruitctl acts as.
var operator = pipeline.Actor{UserID: "recruitctl", Role: pipeline.RoleAdmin}

// ─── phase ───────────────────────────────────────────────────────────────────

type PhaseShowCmd struct{}

func (cmd *PhaseShowCmd) Run(c *Context) error {
	p, err := c.Backend.GetPhase(c.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s (%d/%d)\n", p, p.Index()+1, len(pipeline.Phases()))
	return nil
}

type PhaseSetCmd struct {
	Phase string `arg:"" help:"Target phase, e.g. RELEASE_INTERVIEWS."`
	Force bool   `help:"Allow moving the phase backwards."`
}

func (cmd *PhaseSetCmd) Run(c *Context) error {
	p, err := pipeline.ParsePhase(strings.ToUpper(cmd.Phase))
	if err != nil {
		return err
	}
	svc := pipeline.NewService(c.Backend, c.Backend, c.Catalog, c.Log)
	set, err := svc.SetPhase(c.Ctx, operator, p, cmd.Force)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "phase set to %s\n", set)
	return nil
}

// ─── slots ───────────────────────────────────────────────────────────────────

type SlotsImportCmd struct {
	File   string `arg:"" type:"existingfile" help:"yaml file with a top-level configs list."`
	DryRun bool   `help:"Validate only; nothing is written."`
}

func (cmd *SlotsImportCmd) Run(c *Context) error {
	f, err := os.Open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	configs, err := slots.DecodeConfigs(f)
	if err != nil {
		return err
	}

	target := slots.ConfigStore(c.Backend)
	if cmd.DryRun {
		target = memstore.New()
	}
	for _, cfg := range configs {
		team, err := c.Catalog.Team(cfg.Team)
		if err != nil {
			return err
		}
		if !team.HasSystem(cfg.System) {
			return fmt.Errorf("%s/%s: system is not part of the team", cfg.Team, cfg.System)
		}
		if _, err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s/%s: %w", cfg.Team, cfg.System, err)
		}
		if err := target.UpsertSlotConfig(c.Ctx, cfg); err != nil {
			return err
		}
	}

	verb := "imported"
	if cmd.DryRun {
		verb = "validated"
	}
	fmt.Fprintf(c.Out, "%s %d slot configuration(s)\n", verb, len(configs))
	return nil
}

type SlotsListCmd struct{}

func (cmd *SlotsListCmd) Run(c *Context) error {
	configs, err := c.Backend.ListSlotConfigs(c.Ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tSYSTEM\tCALENDAR\tINTERVIEWERS\tLENGTH\tHOURS\tDAYS\tTZ\tSTATUS")
	for _, cfg := range configs {
		state := "ok"
		if _, err := cfg.Validate(); err != nil {
			state = err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dm+%dm\t%02d-%02d\t%s\t%s\t%s\n",
			cfg.Team, cfg.System, cfg.CalendarID, len(cfg.InterviewerEmails),
			cfg.DurationMinutes, cfg.BufferMinutes, cfg.AvailableStartHour, cfg.AvailableEndHour,
			weekdays(cfg.AvailableDays), cfg.Timezone, state)
	}
	return tw.Flush()
}

type SlotsPreviewCmd struct {
	Team   string `arg:""`
	System string `arg:""`
	Days   int    `help:"Horizon in days; defaults to BOOKING_HORIZON_DAYS."`
}

func (cmd *SlotsPreviewCmd) Run(c *Context) error {
	cfg, err := c.Backend.GetSlotConfig(c.Ctx, cmd.Team, cmd.System)
	if err != nil {
		return err
	}
	loc, err := cfg.Validate()
	if err != nil {
		return err
	}
	days := cmd.Days
	if days <= 0 {
		days = c.Horizon
	}

	now := c.now()
	to := now.AddDate(0, 0, days+1)
	var busy []slots.Interval
	if c.Calendar != nil {
		ids := append([]string{cfg.CalendarID}, cfg.InterviewerEmails...)
		if busy, err = c.Calendar.Busy(c.Ctx, ids, now, to); err != nil {
			return fmt.Errorf("calendar: %w", err)
		}
	} else {
		fmt.Fprintln(c.Out, "note: no calendar configured, calendar busy times are ignored")
	}
	held, err := c.Backend.ListBookings(c.Ctx, cmd.Team, cmd.System, now, to)
	if err != nil {
		return err
	}
	for _, b := range held {
		busy = append(busy, slots.Interval{Start: b.Start, End: b.End})
	}

	seq, err := slots.Compute(*cfg, busy, now, days)
	if err != nil {
		return err
	}
	grouped := slots.GroupByDay(seq, loc)
	if len(grouped) == 0 {
		fmt.Fprintln(c.Out, "no free slots")
		return nil
	}
	for _, d := range grouped {
		starts := make([]string, len(d.Slots))
		for i, s := range d.Slots {
			starts[i] = s.Start.In(loc).Format("15:04")
		}
		day, _ := time.ParseInLocation(time.DateOnly, d.Date, loc)
		fmt.Fprintf(c.Out, "%s %s  %s\n", day.Weekday().String()[:3], d.Date, strings.Join(starts, " "))
	}
	return nil
}

func weekdays(days []int) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			names = append(names, time.Weekday(d).String()[:3])
		}
	}
	return strings.Join(names, ",")
}
