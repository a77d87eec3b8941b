package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ConstructaSaas/internal/appmanager"
)

// InitDB loads DB config from env vars
func InitDB() (*sql.DB, error) {
	connStr := connString()
	return sql.Open("postgres", connStr)
}

func connString() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		user, pass, host, port, name,
	)
}

func main() {
	// Load .env for local dev
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	// database/sql handle for auth and the bank-account master
	db, err := InitDB()
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}
	appmanager.SetDB(db)

	// pgx pool for the ledger and reconciliation services
	pool, err := pgxpool.New(context.Background(), connString())
	if err != nil {
		log.Fatal("failed to create pgx pool:", err)
	}
	appmanager.SetPgxPool(pool)

	manager := appmanager.NewAppManager()

	servicesCfg, err := appmanager.LoadServiceSequence(servicesPath())
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}

	manager.AutoRegisterServices(servicesCfg)

	if err := manager.StartAll(); err != nil {
		log.Fatal("failed to start:", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.Fatal("failed to stop:", err)
	}
	pool.Close()
}

func servicesPath() string {
	if p := os.Getenv("SERVICES_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("services.yaml"); err == nil {
		return "services.yaml"
	}
	return "../services.yaml"
}
