package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"groupcast/internal/config"
	"groupcast/internal/database"
	"groupcast/internal/directory"
	"groupcast/internal/gateway"
	"groupcast/internal/handler"
	"groupcast/internal/logging"
	"groupcast/internal/pipeline"
	"groupcast/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.Env)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database connection established")

	// Core wiring: store -> pipeline -> gateway, directory shared between
	// pipeline (reads) and gateway (writes). All lifetimes end with the
	// process; the directory is rebuilt empty on restart by design.
	st := store.NewSQL(db, log)
	dir := directory.New()
	gw := gateway.New(dir, log)
	p := pipeline.New(st, dir, gw, log)
	h := handler.New(st, p, gw, cfg, log)

	router := h.SetupRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	httpHandler := c.Handler(router)

	log.Info().
		Str("env", cfg.Env).
		Str("addr", "http://localhost:"+cfg.ServerPort).
		Str("ws", "ws://localhost:"+cfg.ServerPort+"/ws").
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("server started")

	if err := http.ListenAndServe(":"+cfg.ServerPort, httpHandler); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
