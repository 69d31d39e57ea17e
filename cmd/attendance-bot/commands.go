package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/attendance-bot/internal/calendar"
	"github.com/username/attendance-bot/internal/config"
	"github.com/username/attendance-bot/internal/daemon"
	"github.com/username/attendance-bot/internal/ledger"
	"github.com/username/attendance-bot/internal/portal"
	"github.com/username/attendance-bot/internal/timemanager"
	"github.com/username/attendance-bot/pkg/dateutil"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// components holds everything the commands wire together
type components struct {
	cfg      *config.Config
	location *time.Location
	resolver *calendar.Resolver
	ledger   *ledger.Ledger
	manager  *timemanager.Manager
}

func buildComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	loc := cfg.Attendance.Location()

	resolver := calendar.NewResolver(
		newFeed(cfg.Calendar, loc, logger),
		calendar.Markers{
			Leave:       cfg.Calendar.LeaveMarker,
			Consecutive: cfg.Calendar.ConsecutiveMarker,
		},
		cfg.Calendar.GetCacheTTL(),
		logger,
	)

	records := ledger.New(ledger.NewFileStore(cfg.Record.Dir), loc, logger)

	manager, err := timemanager.NewManager(timemanager.Settings{
		CheckInHour:          cfg.Attendance.CheckInHour,
		DailyWorkHours:       cfg.Attendance.DailyWorkHours,
		MonthlyRequiredHours: cfg.Attendance.MonthlyRequiredHours,
		MonthlyStartDay:      cfg.Attendance.MonthlyStartDay,
		Location:             loc,
	}, resolver, records, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create time manager: %w", err)
	}

	return &components{
		cfg:      cfg,
		location: loc,
		resolver: resolver,
		ledger:   records,
		manager:  manager,
	}, nil
}

// newFeed picks the remote feed, the local file, or both with the file as
// fallback
func newFeed(cfg config.CalendarConfig, loc *time.Location, logger *zap.Logger) calendar.Feed {
	switch {
	case cfg.FeedURL != "" && cfg.FallbackFile != "":
		return calendar.NewCompositeFeed(
			calendar.NewICSFeed(cfg.FeedURL, cfg.GetHTTPTimeout(), loc, logger),
			calendar.NewFileFeed(cfg.FallbackFile, loc, logger),
			logger,
		)
	case cfg.FeedURL != "":
		return calendar.NewICSFeed(cfg.FeedURL, cfg.GetHTTPTimeout(), loc, logger)
	default:
		return calendar.NewFileFeed(cfg.FallbackFile, loc, logger)
	}
}

func newPortalClient(cfg config.PortalConfig, logger *zap.Logger) (*portal.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return portal.NewClient(portal.Options{
		Username: cfg.Username,
		Password: cfg.Password,
		LoginURL: cfg.LoginURL,
		LinksURL: cfg.LinksURL,
		Headless: cfg.Headless,
		Timeout:  cfg.GetTimeout(),
		DryRun:   cfg.DryRun,
	}, logger), nil
}

func loadComponents() (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return buildComponents(cfg, logger)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the attendance loop (check in and out automatically)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadComponents()
			if err != nil {
				return err
			}

			client, err := newPortalClient(c.cfg.Portal, logger)
			if err != nil {
				return err
			}

			logger.Info("Starting attendance bot",
				zap.String("record_dir", c.cfg.Record.Dir),
				zap.String("feed_url", c.cfg.Calendar.FeedURL),
				zap.Bool("dry_run", c.cfg.Portal.DryRun))

			d := daemon.NewDaemon(c.manager, client, c.ledger, c.cfg.Daemon.SystemTray, logger)
			return d.Start()
		},
	}
}

func statusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's attendance status and monthly hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadComponents()
			if err != nil {
				return err
			}

			status, err := c.manager.Status(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), status, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or yaml")
	return cmd
}

func printStatus(w io.Writer, status *timemanager.Status, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(status); err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		return enc.Close()
	case "text", "":
		workday := "no"
		if status.Workday {
			workday = "yes"
		}
		fmt.Fprintf(w, "Date:          %s (workday: %s)\n", status.Date, workday)
		fmt.Fprintf(w, "State:         %s\n", status.State)
		fmt.Fprintf(w, "Window start:  %s\n", status.WindowStart)
		fmt.Fprintf(w, "Monthly hours: %d/%d\n", status.TotalHours, status.RequiredHours)
		fmt.Fprintf(w, "Today hours:   %d/%d\n", status.TodayHours, status.DailyHours)
		fmt.Fprintf(w, "Check-in at:   %s\n", status.CheckInAt)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or yaml)", format)
	}
}

func holidaysCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "List the holidays of a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadComponents()
			if err != nil {
				return err
			}

			var year int
			var m time.Month
			if month == "" {
				today := dateutil.Today(c.location)
				year, m = today.Year(), today.Month()
			} else {
				year, m, err = dateutil.ParseMonth(month)
				if err != nil {
					return err
				}
			}

			holidays := c.resolver.ResolveHolidays(cmd.Context(), year, m)
			out := cmd.OutOrStdout()
			if len(holidays) == 0 {
				fmt.Fprintf(out, "No holidays in %d-%02d\n", year, m)
				return nil
			}
			for _, day := range holidays.Strings() {
				fmt.Fprintln(out, day)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "Month in YYYY-MM format (default: current month)")
	return cmd
}

func checkInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-in",
		Short: "Check in once now and record it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, ledger.CheckIn)
		},
	}
}

func checkOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-out",
		Short: "Check out once now and record it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, ledger.CheckOut)
		},
	}
}

// runOnce performs a single portal action outside the loop. It must not be
// used on a record dir that a running loop also writes.
func runOnce(cmd *cobra.Command, kind ledger.Kind) error {
	c, err := loadComponents()
	if err != nil {
		return err
	}
	client, err := newPortalClient(c.cfg.Portal, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := perform(ctx, client, kind); err != nil {
		return err
	}

	at := time.Now()
	if err := c.ledger.Record(ctx, kind, at); err != nil {
		return fmt.Errorf("%s succeeded but recording failed: %w", kind, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s at %s\n", kind, at.In(c.location).Format(ledger.TimestampLayout))
	return nil
}

func perform(ctx context.Context, executor daemon.Executor, kind ledger.Kind) error {
	if kind == ledger.CheckIn {
		return executor.CheckIn(ctx)
	}
	return executor.CheckOut(ctx)
}
