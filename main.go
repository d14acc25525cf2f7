package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/ca-srg/autoloadwatch/infrastructure/di"
)

// version is overwritten at build time with -ldflags "-X main.version=..."
var version = "dev"

const usageText = `Usage: autoloadwatch [flags] <command> [args]

Commands:
  status                     Show autoload metrics and warehouse sync state
  push                       Collect metrics and push them to the warehouse now
  next-run                   Show the next scheduled run
  schedule ensure            Register the daily schedule if none exists
  schedule activate          Replace the schedule with a fresh one
  schedule deactivate        Clear the schedule
  daemon                     Run the scheduler (and the admin server when a token is set)
  serve                      Run the admin HTTP server only
  config show                Show the effective configuration
  config init                Write a default configuration file
  version                    Print the version

Flags:
`

// options are the global flags given before the command
type options struct {
	debug      bool
	jsonOutput bool
	configPath string
	command    string
	args       []string
}

var errUsage = errors.New("usage")

func parseArgs(args []string, output io.Writer) (*options, error) {
	fs := flag.NewFlagSet("autoloadwatch", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := &options{}
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging to stdout")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print command output as JSON")
	fs.StringVar(&opts.configPath, "config", "", "Path to the configuration file (default ~/.config/autoloadwatch/config.json)")
	fs.Usage = func() {
		_, _ = fmt.Fprint(output, usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return nil, errUsage
	}
	opts.command = rest[0]
	opts.args = rest[1:]

	if err := validateCommand(opts.command, opts.args); err != nil {
		_, _ = fmt.Fprintf(output, "%v\n\n", err)
		fs.Usage()
		return nil, errUsage
	}
	return opts, nil
}

func validateCommand(command string, args []string) error {
	switch command {
	case "status", "push", "next-run", "daemon", "serve", "version":
		if len(args) > 0 {
			return fmt.Errorf("%s takes no arguments", command)
		}
	case "schedule":
		if len(args) != 1 || (args[0] != "ensure" && args[0] != "activate" && args[0] != "deactivate") {
			return fmt.Errorf("schedule requires one of: ensure, activate, deactivate")
		}
	case "config":
		if len(args) != 1 || (args[0] != "show" && args[0] != "init") {
			return fmt.Errorf("config requires one of: show, init")
		}
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if !opts.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	containerOpts := []di.ContainerOption{
		di.WithDebugMode(opts.debug),
		di.WithJSONOutput(opts.jsonOutput),
	}
	if opts.configPath != "" {
		containerOpts = append(containerOpts, di.WithConfigPath(opts.configPath))
	}

	container, err := di.NewContainer(containerOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}
	defer container.Close()

	// config init writes the file itself and must not find a template there first
	if !(opts.command == "config" && opts.args[0] == "init") {
		container.EnsureConfigFile()
	}

	cliController := container.GetCLIController()
	ctx := context.Background()

	switch opts.command {
	case "daemon":
		err = runDaemon(container, di.DaemonModeScheduler)
	case "serve":
		err = runDaemon(container, di.DaemonModeServe)
	case "status":
		err = cliController.Status(ctx)
	case "push":
		// the result was already printed
		if err = cliController.Push(ctx); err != nil {
			return 1
		}
	case "next-run":
		err = cliController.NextRun(ctx)
	case "schedule":
		switch opts.args[0] {
		case "ensure":
			err = cliController.EnsureScheduled(ctx)
		case "activate":
			err = cliController.Activate(ctx)
		case "deactivate":
			err = cliController.Deactivate(ctx)
		}
	case "config":
		if opts.args[0] == "init" {
			err = cliController.InitConfig()
		} else {
			err = cliController.ShowConfig()
		}
	case "version":
		cliController.PrintVersion(version)
	}

	if err != nil {
		cliController.PrintError(err)
		return 1
	}
	return 0
}

// runDaemon blocks until SIGINT or SIGTERM
func runDaemon(container *di.Container, mode di.DaemonMode) error {
	if err := container.InitDaemonComponents(mode); err != nil {
		return err
	}
	daemonController := container.GetDaemonController()
	if daemonController == nil {
		return fmt.Errorf("daemon mode is not available, check your configuration")
	}
	return daemonController.Run()
}
