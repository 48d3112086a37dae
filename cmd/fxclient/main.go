// fxclient is the command-line front end for the FXStreamPro platform: signup with OTP
// verification, the batch catalog and enrollment.
//
// Usage:
//
//	fxclient signup  -name ... -email ... -password ... -confirm ... -accept-terms
//	fxclient verify  -otp 123456
//	fxclient batches [-search forex] [-language Hindi] [-mode online]
//	fxclient enroll  -batch <id>
//	fxclient whoami
//	fxclient logout
//	fxclient doctor
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/app"
	"fxstreampro/client/internal/config"
	"fxstreampro/client/internal/enrollment/followup"
	"fxstreampro/client/internal/logging"
)

const appName = "FXStreamPro"

// command runs one subcommand against a wired client.
type command struct {
	summary string
	run     func(ctx context.Context, a *app.App, args []string, out io.Writer) error
}

var commands = map[string]command{
	"signup":  {"register a new account (variant set by SIGNUP_VARIANT)", runSignup},
	"verify":  {"verify the OTP sent to the pending email", runVerify},
	"batches": {"list public batches and your enrollments", runBatches},
	"enroll":  {"enroll in a batch", runEnroll},
	"whoami":  {"show the signed-in user", runWhoami},
	"logout":  {"sign out and clear the stored session", runLogout},
	"doctor":  {"check the session store and the platform API", runDoctor},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, app.Deps{})
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, deps app.Deps) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logging.Setup(cfg.LogLevel, stderr)

	if deps.Opener == nil {
		deps.Opener = followup.WithFallback(followup.NewBrowserOpener(), followup.NewPrintOpener(stdout))
	}
	a, err := app.New(ctx, cfg, deps)
	if err != nil {
		log.Error().Err(err).Msg("fxclient: start-up failed")
		return 1
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("fxclient: shutdown")
		}
	}()

	if err := cmd.run(ctx, a, args[1:], stdout); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, usageErr.msg)
			return 2
		}
		fmt.Fprintln(stderr, err)
		if hint := redirectHint(err); hint != "" {
			fmt.Fprintln(stderr, hint)
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, figure.NewFigure(appName, "cybermedium", true).String())
	fmt.Fprintln(w, "Usage: fxclient <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}
