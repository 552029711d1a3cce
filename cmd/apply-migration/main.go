// 套用 migrations/ 下的 SQL 檔到鏡像資料庫
// 用法: apply-migration migrations/001_create_ledger_mirror.sql
package main

import (
	"fmt"
	"log"
	"os"

	"ruiquan-inspection/internal/config"
	"ruiquan-inspection/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql>", os.Args[0])
	}

	sqlContent, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database %s: %v", cfg.Database.Database, err)
	}
	defer db.Close()

	if _, err := db.Exec(string(sqlContent)); err != nil {
		log.Fatalf("Failed to apply migration: %v", err)
	}

	fmt.Printf("Applied %s to %s\n", os.Args[1], cfg.Database.Database)
}
