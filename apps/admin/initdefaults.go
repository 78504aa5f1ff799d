package main

import (
	"context"
	"fmt"

	"github.com/trezcool/shule/core/sysdefaults"
)

// initDefaults seeds the system defaults row if it does not exist yet.
func (cli *commandLine) initDefaults(ctx context.Context) error {
	sdSync, err := sysdefaults.NewSync(ctx, cli.defsRepo, logger)
	if err != nil {
		return err
	}
	defer sdSync.Close()

	defs := sdSync.Current()
	fmt.Printf("system defaults ready (version %d, currency %s)\n", defs.Version, defs.Currency)
	return nil
}
