package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/client"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/config"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/handler"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/logger"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/repository"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/server"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/service"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/vault"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/verifier"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db := client.InitMysqlClient(cfg.DatabaseURL)

	cardVault, err := vault.New(cfg.Vault.Key)
	if err != nil {
		log.Fatal("init vault", zap.Error(err))
	}

	ledgerClient := client.NewLedgerClient(&cfg.Chain)
	emailClient := client.NewEmailClient(&cfg.Email)
	txVerifier := verifier.New(ledgerClient, &cfg.Chain, log)

	sessionRepo := repository.NewSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	giftCardRepo := repository.NewGiftCardRepository(db)
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	fulfillmentService := service.NewFulfillmentService(
		db,
		txVerifier,
		cardVault,
		emailClient,
		sessionRepo,
		paymentRepo,
		giftCardRepo,
		userRepo,
		walletRepo,
		cfg.Chain.Tokens,
		log,
	)
	checkoutService := service.NewCheckoutService(sessionRepo, giftCardRepo, log)

	paymentHandler := handler.NewPaymentHandler(fulfillmentService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)

	srv := server.NewServer(cfg, paymentHandler, checkoutHandler, log)
	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}
