package main

import (
	"context"
	"log"
	"net/http"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/chamapay/chamapay-gobackend.git/internal/config"
	"github.com/chamapay/chamapay-gobackend.git/internal/db"
	"github.com/chamapay/chamapay-gobackend.git/internal/handlers"
	"github.com/chamapay/chamapay-gobackend.git/internal/mpesa"
	"github.com/chamapay/chamapay-gobackend.git/internal/services"
	"github.com/chamapay/chamapay-gobackend.git/internal/store"
)

func main() {
	// Load .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	cfg := config.Load()
	if cfg.MongoURI == "" {
		log.Fatal("MONGOURI environment variable not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	// Connect to MongoDB
	client, err := db.Connect(context.Background(), cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	log.Println("Successfully connected to MongoDB")

	database := client.Database(cfg.Database)

	mongoStore := store.NewMongo(database)
	if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
		log.Printf("Warning: %v", err)
	}

	gateway := mpesa.NewClient(cfg.Mpesa)

	// Initialize services and handlers
	userService := services.NewUserService(database)
	userHandler := handlers.NewUserHandler(userService, cfg.JWTSecret)

	chamaService := services.NewChamaService(database)
	chamaHandler := handlers.NewChamaHandler(chamaService, cfg.JWTSecret)

	loanService := services.NewLoanService(database)
	loanHandler := handlers.NewLoanHandler(loanService, chamaService, cfg.JWTSecret)

	paymentService := services.NewPaymentService(mongoStore, gateway)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.JWTSecret)

	// Set up router
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/user", userHandler.Register).Methods("POST")
	router.HandleFunc("/api/login", userHandler.Login).Methods("POST")
	router.HandleFunc("/api/users", userHandler.GetUsers).Methods("GET")
	router.HandleFunc("/api/user/{userID}", userHandler.GetUser).Methods("GET")

	router.HandleFunc("/api/chama", chamaHandler.CreateChama).Methods("POST")
	router.HandleFunc("/api/chamas", chamaHandler.GetChamas).Methods("GET")
	router.HandleFunc("/api/chama/join", chamaHandler.JoinChama).Methods("POST")

	router.HandleFunc("/api/loan", loanHandler.ApplyLoan).Methods("POST")
	router.HandleFunc("/api/loan/{loanID}/approve", loanHandler.ApproveLoan).Methods("POST")
	router.HandleFunc("/api/loan/{loanID}/reject", loanHandler.RejectLoan).Methods("POST")
	router.HandleFunc("/api/chama/{chamaID}/loans", loanHandler.GetLoansByChama).Methods("GET")

	router.HandleFunc("/api/mpesa/stkpush", paymentHandler.STKPush).Methods("POST")
	router.HandleFunc("/api/mpesa/callback", paymentHandler.Callback).Methods("POST")
	router.HandleFunc("/api/mpesa/b2c", paymentHandler.B2C).Methods("POST")
	router.HandleFunc("/api/userid/{userID}/transactions", paymentHandler.GetTransactionsByUser).Methods("GET")
	router.HandleFunc("/api/chama/{chamaID}/contributions", paymentHandler.GetContributionsByChama).Methods("GET")

	// CORS, including the empty preflight response the payment callers probe with
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}),
	)

	// Start server
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      cors(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}
