package main

import (
	"log"
	"os"

	"lokapasar/internal/devserver"
	"lokapasar/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	secret := os.Getenv("DEV_JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}

	server := devserver.New(secret)

	// Print ready-to-use tokens so a buyer and a seller session can be
	// pointed at this harness immediately.
	buyerToken, err := devserver.IssueToken(secret, devserver.Claims{
		UserID: 101, Name: "Dev Buyer", Kind: "user",
	})
	if err != nil {
		log.Fatalf("Failed to issue buyer token: %v", err)
	}
	sellerToken, err := devserver.IssueToken(secret, devserver.Claims{
		UserID: 201, ShopID: 1, Name: "Demo Shop", Kind: "shop",
	})
	if err != nil {
		log.Fatalf("Failed to issue seller token: %v", err)
	}
	log.Printf("buyer token:  %s", buyerToken)
	log.Printf("seller token: %s", sellerToken)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting dev chat backend on port %s (%s)...", port, cfg.Environment)
	if err := server.Start(":" + port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
