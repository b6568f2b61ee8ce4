package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/flynkle/flynkle-api/internal/config"
	"github.com/flynkle/flynkle-api/internal/database"
	"github.com/flynkle/flynkle-api/internal/handler"
	"github.com/flynkle/flynkle-api/internal/llm"
	"github.com/flynkle/flynkle-api/internal/middleware"
	"github.com/flynkle/flynkle-api/internal/otp"
	"github.com/flynkle/flynkle-api/internal/queue"
	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/ratelimit"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/router"
	"github.com/flynkle/flynkle-api/internal/storage"
	"github.com/flynkle/flynkle-api/internal/store"
	"github.com/flynkle/flynkle-api/internal/token"
)

func main() {
	// .env is optional; real deployments set vars in the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis backs the token revocation set, the OTP store and the response
	// cache.  When it is unreachable the service still comes up: tokens and
	// OTPs degrade to a per-process store and the cache turns itself off.
	rdb := config.NewRedisClient()
	var kv store.Store
	if rdb != nil {
		kv = store.NewFallbackStore(store.NewRedisStore(rdb))
	} else {
		log.Println("redis unavailable, using in-process store")
		kv = store.NewMemoryStore()
	}

	users := repository.NewUserRepo(db)
	conversations := repository.NewConversationRepo(db)
	messages := repository.NewMessageRepo(db)
	usage := repository.NewUsageRepo(db)
	uploads := repository.NewUploadRepo(db)

	tokens := token.New(cfg.JWTSecret, kv,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour)
	otps := otp.New(kv)
	limiter := ratelimit.New(cfg.RateLimitCap, cfg.RateLimitWindow)
	gate := quota.NewGate(usage, conversations)
	llmClient := llm.NewClient(cfg.OpenAIKey, cfg.OpenAIModel)

	objects, err := storage.NewObjectStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioSecure)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	// Consumes chat.completed events; reconnects on its own when the
	// broker drops.
	go func() {
		if err := queue.StartUsageConsumer(); err != nil {
			log.Printf("usage consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	auth := middleware.Auth(tokens, users)

	router.RegisterRoutes(e, rdb)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, otps, limiter))
	router.RegisterUser(e, auth, handler.NewUserHandler(users, usage, gate))
	router.RegisterConversations(e, auth,
		handler.NewConversationHandler(conversations, gate),
		handler.NewMessageHandler(conversations, messages, gate, limiter))
	router.RegisterChat(e, auth, handler.NewChatHandler(cfg, llmClient, conversations, messages, gate, limiter))
	router.RegisterUploads(e, auth, handler.NewUploadHandler(objects, uploads, gate))
	router.RegisterAdmin(e, handler.NewAdminHandler(users))
	router.RegisterModeration(e, handler.NewModerationHandler())

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
