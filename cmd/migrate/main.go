package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"bureau.org/internal/config"
	"bureau.org/internal/migrate"
	"bureau.org/internal/obs"
	"bureau.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides BUREAU_DATABASE_DSN)")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [-dsn DSN] [up|down|seed|status|pending]")
	}
	if *dsn != "" {
		os.Setenv("BUREAU_DATABASE_DSN", *dsn)
	}
	cfg, err := config.LoadTool()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := obs.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr := migrate.NewEmbedded(store.DB(), migrate.WithLogger(logger))

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status", "pending":
		var names []string
		if flag.Arg(0) == "status" {
			names, err = mgr.Status(ctx)
		} else {
			names, err = mgr.Pending(ctx)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
