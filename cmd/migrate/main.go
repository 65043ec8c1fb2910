package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/herbstock/herbstock-backend/pkg/config"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/migration"
)

func main() {
	steps := flag.Int("steps", 0, "apply n migrations (negative rolls back)")
	force := flag.Int("force", -1, "force the schema version without running scripts")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("migrate", cfg.Server.Environment)

	m, err := migration.New(cfg.Database.MigrationURL(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open migrator")
	}
	defer m.Close()

	switch {
	case *force >= 0:
		err = m.Force(*force)
	case *steps != 0:
		err = m.Steps(*steps)
	default:
		switch flag.Arg(0) {
		case "", "up":
			err = m.Up()
		case "down":
			err = m.Down()
		case "version":
			var version uint
			var dirty bool
			version, dirty, err = m.Version()
			if err == nil {
				fmt.Printf("version=%d dirty=%t\n", version, dirty)
			}
		default:
			flag.Usage()
			os.Exit(2)
		}
	}

	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
