package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gradewatch/internal/app"
)

func main() {
	var (
		cfgPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "./gradewatch.yaml", "path to config file (yaml or json)")
	flag.BoolVar(&once, "once", false, "run a single poll cycle and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer a.Close()

	if once {
		if err := a.RunOnce(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			a.Close()
			os.Exit(1)
		}
		return
	}

	if err := a.RunDaemon(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		a.Close()
		os.Exit(1)
	}
}
