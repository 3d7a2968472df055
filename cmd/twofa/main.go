package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"

	"github.com/wilsonhuang01/CMPE-272-2FA/internal/config"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		printUsage()
		os.Exit(2)
	}

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start-up failed:", err)
		os.Exit(1)
	}
	if cmd.banner && a.color {
		displayAppname(c.GetAppName())
	}
	err = a.dispatch(ctx, cmd, os.Args[2:])
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", cmd.name, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: twofa <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", name, commands[name].usage)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
