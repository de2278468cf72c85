package main

import (
	"chatcore/internal/config"
	"chatcore/internal/credential"
	"chatcore/internal/database"
	"chatcore/internal/handlers"
	"chatcore/internal/identity"
	"chatcore/internal/invite"
	"chatcore/internal/jwt"
	"chatcore/internal/keyValue"
	"chatcore/internal/logger"
	"chatcore/internal/membership"
	"chatcore/internal/messages"
	"chatcore/internal/models"
	"context"
	"flag"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupRedis(cfg *models.ConfigFile) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	fmt.Println("Reading config file...")
	cfg := config.MustLoad(*configPath)

	fmt.Println("Setting up logger...")
	sugar, err := logger.Setup(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func(sugar *zap.SugaredLogger) {
		_ = sugar.Sync()
	}(sugar)

	db, err := database.Setup(cfg, sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if !cfg.SelfContained {
		sugar.Infof("Connecting to redis at %s...", cfg.RedisAddress)
		redisClient, err = setupRedis(cfg)
		if err != nil {
			sugar.Fatal(err)
		}
		defer redisClient.Close()
	}

	kv := keyValue.Setup(sugar, redisClient, cfg.SelfContained)

	isHttps := cfg.TlsCert != "" && cfg.TlsKey != ""
	tokens := jwt.New(cfg.JwtSecret, isHttps)

	ledger := membership.NewLedger(db, sugar)
	services := handlers.Services{
		Directory: identity.NewDirectory(db, credential.New(cfg.BcryptCost), tokens, kv, sugar),
		Ledger:    ledger,
		Gate:      invite.NewGate(db, ledger, sugar),
		Log:       messages.NewLog(db, sugar),
		Tokens:    tokens,
	}

	var httpProtocol string
	if isHttps {
		httpProtocol = "https"
	} else {
		httpProtocol = "http"
	}
	sugar.Infof("Server is running on %s://%s:%s", httpProtocol, cfg.Address, cfg.Port)

	err = handlers.Setup(isHttps, cfg, sugar, services)
	if err != nil {
		sugar.Fatal(err)
	}
}
