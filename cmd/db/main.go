package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"divtable/internal/ledger"
)

func main() {
	ledgerPath := flag.String("ledger", getLedgerPath(), "Path to the run ledger (default: $LEDGER_PATH or ./runs.db)")
	reset := flag.Bool("reset", false, "Drop every recorded run before recreating the schema")
	flag.Parse()

	log.Printf("Setting up ledger at: %s\n", *ledgerPath)

	l, err := ledger.Open(*ledgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer l.Close()

	if *reset {
		log.Println("Dropping recorded runs...")
		if err := l.ResetSchema(); err != nil {
			log.Fatalf("Failed to reset ledger: %v", err)
		}
	}

	log.Println("Ledger setup completed successfully!")
	fmt.Println("\nTables:")
	fmt.Println("- runs (one row per compile, holding the base divisor of its table)")
}

func getLedgerPath() string {
	ledgerPath := os.Getenv("LEDGER_PATH")
	if ledgerPath == "" {
		ledgerPath = "./runs.db"
	}
	return ledgerPath
}
