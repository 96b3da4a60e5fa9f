package main

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/erzulfequar/OCR-Backend/pkg/api"
	"github.com/erzulfequar/OCR-Backend/pkg/config"
	"github.com/erzulfequar/OCR-Backend/pkg/database"
	"github.com/erzulfequar/OCR-Backend/pkg/extraction"
	"github.com/erzulfequar/OCR-Backend/pkg/ocr"
	"github.com/erzulfequar/OCR-Backend/pkg/parsers"
	"github.com/erzulfequar/OCR-Backend/pkg/synonyms"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	config.SetupLogging(cfg.LogLevel)

	table := synonyms.DefaultTable()
	if cfg.SynonymsFile != "" {
		t, err := synonyms.LoadTable(cfg.SynonymsFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to load synonym table")
		}
		table = t
		log.WithField("file", cfg.SynonymsFile).Info("Loaded synonym table")
	}

	// Extraction chain: AI (when configured), OCR, then plain rules
	ctx := context.Background()
	var strategies []extraction.Strategy
	if cfg.GeminiAPIKey != "" {
		client, err := config.InitGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.WithError(err).Fatal("Failed to create Gemini client")
		}
		defer client.Close()
		strategies = append(strategies, &extraction.AIStrategy{Generator: parsers.NewGeminiModel(client, cfg.GeminiModel)})
	}
	strategies = append(strategies,
		&extraction.OCRStrategy{OCR: ocr.NewService(ocr.Config{Language: cfg.OCRLanguage})},
		extraction.RulesStrategy{},
	)
	orchestrator := extraction.New(strategies,
		extraction.WithTable(table),
		extraction.WithStrategyTimeout(cfg.StrategyTimeout),
	)

	// Connect to the database
	var store api.InvoiceStore
	db, err := database.ConnectDB(cfg.DB)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to database, invoices will not be stored")
	} else {
		defer db.Close()
		if err := database.InitDB(ctx, db); err != nil {
			log.WithError(err).Warn("Failed to initialize database, invoices will not be stored")
		} else {
			store = &database.Store{DB: db}
			log.Info("Database connection established and initialized successfully.")
		}
	}

	handler := &api.Handler{
		Orchestrator: orchestrator,
		Store:        store,
		Table:        table,
		UploadDir:    cfg.UploadDir,
		CORSOrigins:  cfg.CORSOrigins,
	}
	mux := http.NewServeMux()
	api.SetupRoutes(mux, handler)

	log.WithFields(log.Fields{
		"port":       cfg.Port,
		"strategies": len(strategies),
	}).Info("Server starting")
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler.CORS(mux)))
}
