package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"telehaunt/internal/usecase/scheduling"
)

// runCheck validates the config and page content without opening the TUI
// and prints a summary to w.
func runCheck(w io.Writer, flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	// Keep check output clean.
	cfg.Logger.Output = "discard"

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(w, "telehaunt check")
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "config:     %s\n", configPath(flags))
	fmt.Fprintf(w, "pages:      %d from %s\n", a.source.Len(), a.source.Origin())

	nums := a.source.Numbers()
	if len(nums) > 0 {
		fmt.Fprintf(w, "range:      P%d-P%d\n", nums[0], nums[len(nums)-1])
	}
	start := cfg.Pages.StartPage
	if _, err := a.source.Fetch(context.Background(), start); err != nil {
		fmt.Fprintf(w, "start page: P%d MISSING\n", start)
	} else {
		fmt.Fprintf(w, "start page: P%d\n", start)
	}

	table := a.sequencer.Themes()
	fmt.Fprintln(w, "themes:")
	for _, key := range table.Keys() {
		marker := " "
		if key == cfg.Transition.DefaultTheme {
			marker = "*"
		}
		extra := ""
		if table.IsHaunting(key) {
			extra = " haunting"
		}
		fmt.Fprintf(w, "  %s %-10s %-12s %v%s\n", marker, key, table.DisplayName(key), table.Duration(key), extra)
	}

	if a.scheduler != nil {
		fmt.Fprintln(w, "schedule:")
		names := a.scheduler.Names()
		sort.Strings(names)
		for _, name := range names {
			if next, ok := a.scheduler.NextRun(name); ok {
				fmt.Fprintf(w, "  - %-20s next %s\n", name, next.Format(time.DateTime))
				continue
			}
			fmt.Fprintf(w, "  - %s\n", name)
		}
	} else if len(cfg.Scheduler.Switches) > 0 {
		fmt.Fprintln(w, "schedule:   disabled")
		for _, sw := range cfg.Scheduler.Switches {
			if _, err := scheduling.ParseSchedule(sw.Schedule); err != nil {
				return fmt.Errorf("schedule %q: %w", sw.Schedule, err)
			}
		}
	}

	fmt.Fprintln(w, "OK")
	return nil
}
