// Command migrate applies the embedded schema migrations to the configured
// database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"crmapi/config"
	"crmapi/db"
	"crmapi/logging"
)

func main() {
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	if *list {
		names, err := db.Migrations()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	cfg := config.Load()
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "crm-migrate")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		logger.Fatal("migrate", zap.Strings("applied", applied), zap.Error(err))
	}
	if len(applied) == 0 {
		logger.Info("schema up to date")
		return
	}
	logger.Info("migrations applied", zap.Strings("files", applied))
}
