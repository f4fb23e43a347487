// migrate applies or rolls back the embedded database migrations.
// Usage: go run ./cmd/migrate [-direction=up|down]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"crm-auth-service/internal/config"
	"crm-auth-service/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch *direction {
	case "up":
		err = migrate.Up(cfg.DatabaseURL)
	case "down":
		err = migrate.Down(cfg.DatabaseURL)
	default:
		fmt.Fprintf(os.Stderr, "unknown direction %q (want up or down)\n", *direction)
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("schema already up to date")
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
