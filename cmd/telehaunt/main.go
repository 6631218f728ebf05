package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"telehaunt/internal/adapter/tui"
	"telehaunt/internal/adapter/tui/uxerror"
	"telehaunt/internal/infra/config"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "telehaunt: %v\n\nRun 'telehaunt --help' for usage information.\n", err)
		os.Exit(2)
	}

	switch flags.Command {
	case "", "run":
		if err := run(flags); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %s\n", uxerror.Humanize(err).Render())
			os.Exit(1)
		}
	case "check":
		if err := runCheck(os.Stdout, flags); err != nil {
			fmt.Fprintf(os.Stderr, "check: %s\n", uxerror.Humanize(err).Render())
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'telehaunt --help' for usage information.\n", flags.Command)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`telehaunt - a haunted teletext viewer

USAGE:
    telehaunt [COMMAND] [FLAGS]

COMMANDS:
    run         Open the page viewer (default)
    check       Validate config and pages, then print a summary

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./telehaunt.yaml)
    --page N           Start page (100-899)
    --theme KEY        Initial theme (e.g. classic, haunting)

KEYS:
    0-9 page number, ←/→ prev/next, space skip, t theme, r reload, q quit

CONFIGURATION:
    Config file: ./telehaunt.yaml
    Environment: TELEHAUNT_* variables override config`)
}

// cliFlags holds the parsed command line.
type cliFlags struct {
	Command string
	Config  string
	Page    int
	Theme   string
}

// parseFlags accepts "--flag value" and "--flag=value" forms. The first
// non-flag argument is the command.
func parseFlags(args []string) (cliFlags, error) {
	var flags cliFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, inline := strings.Cut(arg, "=")
		if !strings.HasPrefix(name, "--") {
			if flags.Command != "" {
				return flags, fmt.Errorf("unexpected argument %q", arg)
			}
			flags.Command = arg
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return flags, fmt.Errorf("flag %s needs a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			flags.Config = value
		case "--page":
			n, err := strconv.Atoi(value)
			if err != nil {
				return flags, fmt.Errorf("--page: %w", err)
			}
			flags.Page = n
		case "--theme":
			flags.Theme = value
		default:
			return flags, fmt.Errorf("unknown flag %s", name)
		}
	}
	return flags, nil
}

// configPath returns the config file path from flags, env, or default.
func configPath(flags cliFlags) string {
	if flags.Config != "" {
		return flags.Config
	}
	if p := os.Getenv("TELEHAUNT_CONFIG"); p != "" {
		return p
	}
	return "telehaunt.yaml"
}

// loadConfig loads the config file and applies the flag overrides.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg, err := config.Load(configPath(flags))
	if err != nil {
		return nil, err
	}
	if flags.Page != 0 {
		cfg.Pages.StartPage = flags.Page
	}
	if flags.Theme != "" {
		cfg.Transition.DefaultTheme = flags.Theme
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// The TUI owns the terminal.
	switch strings.ToLower(cfg.Logger.Output) {
	case "", "stdout", "stderr":
		cfg.Logger.Output = "telehaunt.log"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.startScheduler(ctx); err != nil {
		return err
	}

	return tui.Run(ctx, tui.Sources{
		Animation: a.animation,
		Sequencer: a.sequencer,
		Viewer:    a.viewer,
	}, a.logger)
}
