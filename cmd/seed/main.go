package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tappay-gateway/internal/config"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/infra/api"
	pg "tappay-gateway/internal/infra/db/postgres"
	"tappay-gateway/internal/usecase"
)

// seed creates a checkout with an active TapPay payment for local testing and
// prints a platform token for the /api/v1 endpoints.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	email := flag.String("email", "shopper@example.com", "checkout email")
	total := flag.String("total", "10.500", "checkout total")
	currency := flag.String("currency", "KWD", "checkout currency")
	returnURL := flag.String("return-url", "http://localhost:3000/checkout/complete", "storefront return url")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	amount, err := decimal.NewFromString(*total)
	if err != nil {
		log.Fatalf("total: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	token := uuid.NewString()
	if _, err := pool.Exec(ctx,
		`INSERT INTO checkouts (token, email, total, currency) VALUES ($1, $2, $3, $4)`,
		token, *email, amount.String(), *currency,
	); err != nil {
		log.Fatalf("insert checkout: %v", err)
	}

	var paymentID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO payments (gateway, return_url, checkout_token, total, currency, customer_email)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		usecase.PluginID, *returnURL, token, amount.String(), *currency, *email,
	).Scan(&paymentID); err != nil {
		log.Fatalf("insert payment: %v", err)
	}

	bearer, err := api.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL).Mint("seed")
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}

	fmt.Printf("checkout:   %s\n", token)
	fmt.Printf("payment:    %d (%s)\n", paymentID, model.ToGlobalID(model.GlobalTypePayment, paymentID))
	fmt.Printf("amount:     %s %s\n", amount.StringFixed(3), *currency)
	fmt.Printf("token:      %s\n", bearer)
	fmt.Println("Seeding complete.")
}
