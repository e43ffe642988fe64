// Command daplaunch runs a program under a debug adapter from the command
// line: it resolves the adapter, drives the initialize/launch handshake,
// relays the debuggee's output, and waits for termination.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	dapclient "github.com/adapterkit/dap-client-go"
	"github.com/adapterkit/dap-client-go/internal/launchfile"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd := newRootCommand()
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}

type runFlags struct {
	launchFile    string
	configuration string
	adapterKind   string
	adapterPath   string
	adapterArgs   []string
	logLevel      string
	timeout       time.Duration
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "daplaunch",
		Short:         "Run programs under a Debug Adapter Protocol adapter",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.AddCommand(
		newRunCommand(),
		newListCommand(),
	)

	return root
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Launch a program under a debug adapter and relay its output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program := ""
			if len(args) == 1 {
				program = args[0]
			}

			return runSession(cmd.Context(), flags, program)
		},
	}

	cmd.Flags().StringVarP(&flags.launchFile, "launchfile", "f", "", "TOML launch file")
	cmd.Flags().StringVarP(&flags.configuration, "configuration", "c", "", "named configuration from the launch file")
	cmd.Flags().StringVarP(&flags.adapterKind, "adapter", "a", "", "adapter kind (python, go, lldb, gdb)")
	cmd.Flags().StringVar(&flags.adapterPath, "adapter-path", "", "explicit adapter executable, bypassing kind resolution")
	cmd.Flags().StringArrayVar(&flags.adapterArgs, "adapter-arg", nil, "argument for the adapter executable (repeatable)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "per-request response timeout (0 waits indefinitely)")

	return cmd
}

func newListCommand() *cobra.Command {
	var launchFile string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configurations in a launch file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := launchfile.Load(launchFile)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(file.Configurations))
			for name := range file.Configurations {
				names = append(names, name)
			}

			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(adapter: %s)\n",
					name, file.Configurations[name].Adapter)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&launchFile, "launchfile", "f", "launch.toml", "TOML launch file")

	return cmd
}

// sessionOptions translates the command line into client options.
func sessionOptions(flags *runFlags, program string) ([]dapclient.Option, error) {
	logger, err := newLogger(flags.logLevel)
	if err != nil {
		return nil, err
	}

	opts := []dapclient.Option{
		dapclient.WithLogger(logger),
		dapclient.WithClientName("daplaunch"),
		dapclient.WithRequestTimeout(flags.timeout),
		dapclient.WithStderr(func(line string) {
			fmt.Fprintln(os.Stderr, line)
		}),
		dapclient.WithOnEvent(printOutputEvent),
	}

	launchConfig := map[string]any{"request": "launch"}

	switch {
	case flags.launchFile != "":
		if flags.configuration == "" {
			return nil, fmt.Errorf("--launchfile requires --configuration")
		}

		file, err := launchfile.Load(flags.launchFile)
		if err != nil {
			return nil, err
		}

		cfg, adapter, err := file.Configuration(flags.configuration)
		if err != nil {
			return nil, err
		}

		if adapter.Path != "" {
			opts = append(opts, dapclient.WithAdapterCommand(adapter.Path, adapter.Args...))
		} else {
			opts = append(opts, dapclient.WithAdapterKind(adapter.Kind))
		}

		for key, value := range cfg.Launch {
			launchConfig[key] = value
		}
	case flags.adapterPath != "":
		opts = append(opts, dapclient.WithAdapterCommand(flags.adapterPath, flags.adapterArgs...))
	case flags.adapterKind != "":
		opts = append(opts, dapclient.WithAdapterKind(flags.adapterKind))
	default:
		return nil, fmt.Errorf("select an adapter with --adapter, --adapter-path, or --launchfile")
	}

	if program != "" {
		launchConfig["program"] = program
	}

	if _, ok := launchConfig["program"]; !ok {
		return nil, fmt.Errorf("no program to launch: pass one as an argument or in the launch file")
	}

	opts = append(opts, dapclient.WithLaunchConfig(launchConfig))

	return opts, nil
}

// runSession drives one complete debug session: handshake, launch, wait for
// termination, disconnect.
func runSession(ctx context.Context, flags *runFlags, program string) error {
	opts, err := sessionOptions(flags, program)
	if err != nil {
		return err
	}

	return dapclient.WithSession(ctx, func(s *dapclient.Session) error {
		if _, err := s.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}

		if _, err := s.ConfigurationDone(ctx); err != nil {
			return fmt.Errorf("configurationDone: %w", err)
		}

		// Register the waiter before launching so the event cannot slip by.
		terminated := make(chan error, 1)

		go func() {
			_, err := s.WaitForEvent(ctx, "terminated")
			terminated <- err
		}()

		resp, err := s.Launch(ctx)
		if err != nil {
			return fmt.Errorf("launch: %w", err)
		}

		if !resp.Success {
			message := "launch rejected by adapter"
			if resp.Message != nil {
				message = *resp.Message
			}

			return fmt.Errorf("launch: %s", message)
		}

		if err := <-terminated; err != nil {
			return fmt.Errorf("wait for termination: %w", err)
		}

		if _, err := s.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}

		return nil
	}, opts...)
}

// printOutputEvent relays the debuggee's output events to our own stdout.
func printOutputEvent(ev *dapclient.Event) {
	if ev.Event != "output" {
		return
	}

	body, ok := ev.Body.(map[string]any)
	if !ok {
		return
	}

	if text, ok := body["output"].(string); ok {
		fmt.Print(text)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}
