package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"divtable/internal/api"
	"divtable/internal/ledger"

	"github.com/go-chi/chi/v5"
)

func main() {
	tableFile := flag.String("table", "divisors.bin", "Path to the compiled divisor table")
	base := flag.Int64("base", -1, "Base divisor of the table (default: read from the ledger)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	table, err := loadTable(*tableFile, *base)
	if err != nil {
		log.Fatalf("Failed to load table: %v", err)
	}
	log.Printf("Loaded %d records (base %d, %d sentinels)", len(table.Codes), table.Base, table.Sentinels())

	server := api.NewServer(table)

	mux := chi.NewMux()
	h := api.Handler(server, mux)

	s := &http.Server{
		Addr:    *addr,
		Handler: h,
	}

	fmt.Printf("Starting server on %s\n", *addr)
	if err := s.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadTable(path string, base int64) (*api.Table, error) {
	if base >= 0 {
		return api.LoadTableWithBase(path, int32(base))
	}

	ledgerPath := getLedgerPath()
	log.Printf("Reading base divisor from ledger: %s", ledgerPath)
	l, err := ledger.Open(ledgerPath)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	return api.LoadTable(path, l)
}

func getLedgerPath() string {
	ledgerPath := os.Getenv("LEDGER_PATH")
	if ledgerPath == "" {
		ledgerPath = "./runs.db"
	}
	return ledgerPath
}
