package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/parentguard/internal/config"
	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	checkDay     string
	checkTime    string
	checkMinutes int
	checkRepeat  int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check enforcement decisions interactively",
	Long:  `Check what ParentGuard would decide for a user's playback, seek or title switch.`,
}

var checkStartCmd = &cobra.Command{
	Use:   "start [flags] USER_ID",
	Short: "Check a playback start",
	Example: `  parentguard -c config.yaml check start kid1
  parentguard check start kid1 --day saturday --time 18:30 --minutes 85`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck("start"),
}

var checkSeekCmd = &cobra.Command{
	Use:     "seek [flags] USER_ID",
	Short:   "Check a burst of seeks",
	Example: `  parentguard check seek kid1 --repeat 6`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCheck("seek"),
}

var checkSwitchCmd = &cobra.Command{
	Use:     "switch [flags] USER_ID",
	Short:   "Check a burst of title switches",
	Example: `  parentguard check switch kid1 --repeat 4`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCheck("switch"),
}

func init() {
	for _, cmd := range []*cobra.Command{checkStartCmd, checkSeekCmd, checkSwitchCmd} {
		cmd.Flags().StringVar(&checkDay, "day", "", "Day of week (monday, tuesday, etc.) - defaults to current day")
		cmd.Flags().StringVar(&checkTime, "time", "", "Time of day (HH:MM) - defaults to current time")
		cmd.Flags().IntVar(&checkMinutes, "minutes", 0, "Minutes already watched today")
		cmd.Flags().IntVar(&checkRepeat, "repeat", 1, "Number of consecutive events to evaluate")
		checkCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(checkCmd)
}

func runCheck(kind string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		if checkRepeat < 1 {
			return fmt.Errorf("--repeat must be at least 1")
		}
		if checkMinutes < 0 {
			return fmt.Errorf("--minutes must not be negative")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		at, err := parseCheckTime(time.Now().In(loc), checkDay, checkTime)
		if err != nil {
			return err
		}

		// Silent logger so output stays readable.
		logger := zerolog.Nop()

		store, err := openStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() { _ = store.Close() }()

		policies, _, err := buildPolicyProvider(cfg, store, logger)
		if err != nil {
			return err
		}

		clock := &policy.TestClock{CurrentTime: at.UTC(), Location: loc}
		service := enforce.NewService(enforce.Deps{
			Policies: policies,
			Clock:    clock,
			States:   state.NewStore(clock, logger),
		}, enforce.Config{
			SeekTolerance:         parseDuration(cfg.Enforcement.SeekTolerance, enforce.DefaultSeekTolerance),
			EnforceDuringPlayback: cfg.Enforcement.EnforceDuringPlayback,
		}, logger)

		ctx := context.Background()
		if checkMinutes > 0 {
			service.SimulateProgress(ctx, userID, checkMinutes)
		}

		decisions := make([]enforce.Decision, 0, checkRepeat)
		for i := 0; i < checkRepeat; i++ {
			var d enforce.Decision
			switch kind {
			case "start":
				d = service.SimulateStart(ctx, userID)
			case "seek":
				d = service.SimulateSeek(ctx, userID)
			case "switch":
				d = service.SimulateSwitch(ctx, userID)
			}
			decisions = append(decisions, d)
			clock.Advance(time.Second)
		}

		printCheckResult(kind, userID, at, policies.GetEffectivePolicy(ctx, userID), decisions, service.State(ctx, userID).Summary)
		return nil
	}
}

// printCheckResult prints each decision with colors followed by the user's resulting state
func printCheckResult(kind, userID string, at time.Time, p policy.ProfilePolicy, decisions []enforce.Decision, st state.Summary) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Println("=== Enforcement Check ===")
	fmt.Printf("User:    %s\n", userID)
	fmt.Printf("Event:   %s\n", kind)
	fmt.Printf("Time:    %s (%s)\n", at.Format("Mon 2006-01-02 15:04"), at.Location())
	fmt.Printf("Policy:  enabled=%t budget=%dmin seek=%d/%dmin switch=%d/%dmin cooldown=%dmin\n",
		p.Enabled, policy.DailyBudget(p, at.Weekday()),
		p.SeekRateLimit.MaxEvents, p.SeekRateLimit.WindowMinutes,
		p.SwitchRateLimit.MaxEvents, p.SwitchRateLimit.WindowMinutes,
		p.CooldownOnTripMinutes)
	fmt.Println()

	for i, d := range decisions {
		fmt.Printf("#%-3d ", i+1)
		if d.Allow {
			_, _ = green.Println("ALLOW")
			continue
		}
		_, _ = red.Print("DENY")
		fmt.Printf("  reason=%s", d.Reason)
		if d.CooldownMinutes != nil {
			fmt.Printf(" cooldown=%dmin", *d.CooldownMinutes)
		}
		fmt.Println()
	}

	fmt.Println()
	_, _ = yellow.Printf("Consumed: %d min  Seeks: %d  Switches: %d\n", st.MinutesConsumed, st.SeekEvents, st.SwitchEvents)
	if st.CooldownUntil != nil {
		_, _ = yellow.Printf("Cooldown until %s\n", st.CooldownUntil.In(at.Location()).Format("15:04:05"))
	}
}

// parseCheckTime resolves day and time flags against now into a time.Time
func parseCheckTime(now time.Time, dayStr, timeStr string) (time.Time, error) {
	hour := now.Hour()
	minute := now.Minute()

	if timeStr != "" {
		parsed, err := time.Parse("15:04", timeStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time %q: must be HH:MM", timeStr)
		}
		hour, minute = parsed.Hour(), parsed.Minute()
	}

	targetDay := now.Weekday()
	if dayStr != "" {
		switch strings.ToLower(dayStr) {
		case "sunday", "sun":
			targetDay = time.Sunday
		case "monday", "mon":
			targetDay = time.Monday
		case "tuesday", "tue":
			targetDay = time.Tuesday
		case "wednesday", "wed":
			targetDay = time.Wednesday
		case "thursday", "thu":
			targetDay = time.Thursday
		case "friday", "fri":
			targetDay = time.Friday
		case "saturday", "sat":
			targetDay = time.Saturday
		default:
			return time.Time{}, fmt.Errorf("invalid day: %s", dayStr)
		}
	}

	daysUntilTarget := int(targetDay - now.Weekday())
	if daysUntilTarget < 0 {
		daysUntilTarget += 7
	}

	target := now.AddDate(0, 0, daysUntilTarget)
	return time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, now.Location()), nil
}
