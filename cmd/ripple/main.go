package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/thegoddo/ripple/internal/app"
	"github.com/thegoddo/ripple/internal/profile"
	"github.com/thegoddo/ripple/internal/tui"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var tuiApp *tui.App
	fxApp := fx.New(
		app.Module(app.Params{Profile: name}),
		fx.Populate(&tuiApp),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runErr := tuiApp.Run()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
