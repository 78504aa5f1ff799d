package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/shule/core/sysdefaults"
	feedsvc "github.com/trezcool/shule/services/feed"
	"github.com/trezcool/shule/storage/database"
)

// watchDefaults tails the system-defaults change feed and prints every update
// until interrupted. source is "postgres" or "nats".
func (cli *commandLine) watchDefaults(ctx context.Context, source string) error {
	sdSync, err := sysdefaults.NewSync(ctx, cli.defsRepo, logger)
	if err != nil {
		return err
	}
	defer sdSync.Close()

	var feed sysdefaults.Feed
	switch source {
	case "postgres":
		feed, err = database.NewDefaultsFeed(cli.conf, logger)
	case "nats":
		feed, err = feedsvc.NewDefaultsFeed(cli.conf, logger)
	default:
		return fmt.Errorf("%q: unknown feed source (postgres|nats)", source)
	}
	if err != nil {
		return err
	}
	defer feed.Close()

	unsub := sdSync.Subscribe(func(defs sysdefaults.SystemDefaults) {
		fmt.Printf("defaults updated: version=%d grace_months=%d grace_fee=%.2f threshold=%.1f currency=%s\n",
			defs.Version, defs.GracePeriodMonths, defs.GraceFee, defs.AttendanceThreshold, defs.Currency)
	})
	defer unsub()
	sdSync.Listen(feed)

	defs := sdSync.Current()
	fmt.Printf("watching system defaults (version %d), Ctrl+C to stop\n", defs.Version)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	select {
	case <-shutdown:
	case <-ctx.Done():
	}
	return nil
}
