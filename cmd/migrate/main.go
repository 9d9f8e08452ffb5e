package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"crosswatch/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", filepath.Join("data", "crosswatch.db"), "Database path")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-db path] up|down|version|force <version>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Open does not migrate, so every command starts from the current schema.
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		fmt.Println("✅ Schema is up to date")
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		fmt.Println("✅ Schema rolled back")
	case "version":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to read schema version: %v", err)
		}
		fmt.Printf("📊 Schema version: %d (dirty=%v)\n", version, dirty)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force needs a version")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("Invalid version %q: %v", flag.Arg(1), err)
		}
		if err := db.MigrateForce(version); err != nil {
			log.Fatalf("Force failed: %v", err)
		}
		fmt.Printf("⚠️  Schema version forced to %d\n", version)
	default:
		log.Printf("Unknown command %q", cmd)
		flag.Usage()
		os.Exit(2)
	}
}
