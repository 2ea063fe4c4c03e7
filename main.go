package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/handlers"
	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/config"
	"github.com/clubhub/clubhub/backend/go-services/internal/dashboard"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/internal/messages"
	"github.com/clubhub/clubhub/backend/go-services/internal/notify"
	"github.com/clubhub/clubhub/backend/go-services/internal/oidc"
	"github.com/clubhub/clubhub/backend/go-services/internal/payments"
	"github.com/clubhub/clubhub/backend/go-services/internal/realtime"
	"github.com/clubhub/clubhub/backend/go-services/internal/sessions"
	"github.com/clubhub/clubhub/backend/go-services/internal/standings"
	"github.com/clubhub/clubhub/backend/go-services/internal/storage"
	"github.com/clubhub/clubhub/backend/go-services/internal/tokens"
	"github.com/clubhub/clubhub/backend/go-services/internal/users"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const version = "1.0.0"

var startTime = time.Now()

// repos groups the persistence layer; Mongo when configured, memory otherwise.
type repos struct {
	users        users.UserRepository
	sessions     sessions.Repository
	applications applications.Repository
	invoices     invoices.Repository
	payments     payments.Repository
	tiers        memberships.TierRepository
	memberships  memberships.Repository
	categories   marketplace.CategoryRepository
	listings     marketplace.Repository
	messages     messages.Repository
	matches      standings.Repository
}

func mongoRepos(db *mongo.Database) repos {
	return repos{
		users:        users.NewMongoUserRepository(db.Collection(database.CollUsers)),
		sessions:     sessions.NewMongoRepository(db.Collection(database.CollSessions)),
		applications: applications.NewMongoRepository(db.Collection(database.CollApplications)),
		invoices:     invoices.NewMongoRepository(db.Collection(database.CollInvoices), database.NewCounter(db.Collection(database.CollCounters))),
		payments:     payments.NewMongoRepository(db.Collection(database.CollPayments)),
		tiers:        memberships.NewMongoTierRepository(db.Collection(database.CollTiers)),
		memberships:  memberships.NewMongoRepository(db.Collection(database.CollMemberships)),
		categories:   marketplace.NewMongoCategoryRepository(db.Collection(database.CollCategories)),
		listings:     marketplace.NewMongoRepository(db.Collection(database.CollListings)),
		messages:     messages.NewMongoRepository(db.Collection(database.CollMessages)),
		matches:      standings.NewMongoRepository(db.Collection(database.CollMatches)),
	}
}

func memoryRepos() repos {
	return repos{
		users:        users.NewMemoryRepository(),
		sessions:     sessions.NewMemoryRepository(),
		applications: applications.NewMemoryRepository(),
		invoices:     invoices.NewMemoryRepository(),
		payments:     payments.NewMemoryRepository(),
		tiers:        memberships.NewMemoryTierRepository(),
		memberships:  memberships.NewMemoryRepository(),
		categories:   marketplace.NewMemoryCategoryRepository(),
		listings:     marketplace.NewMemoryRepository(),
		messages:     messages.NewMemoryRepository(),
		matches:      standings.NewMemoryRepository(),
	}
}

// originChecker accepts same-host requests, any origin under "*", or a
// listed origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	c.ExposeHeaders = []string{"Content-Length", "Content-Disposition"}
	return c
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer func() { _ = logger.Sync() }()
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: env=%s oidc=%v mongo=%v redis=%v", cfg.Server.Environment, cfg.OIDC.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(ginzap.Ginzap(logger.L(), time.RFC3339, true), ginzap.RecoveryWithZap(logger.L(), true))
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	// Redis backs refresh sessions, the logout blacklist, rate limits and
	// the standings cache. Everything degrades to in-process state without it.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		c := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unavailable: %v", addr, err)
			_ = c.Close()
		} else {
			rdb = c
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	var globalLimit gin.HandlerFunc
	publicLimit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		if cfg.RateLimit.UseRedis && rdb != nil {
			globalLimit = middleware.RedisRateLimitMiddleware(rdb, "global", cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
			publicLimit = middleware.RedisRateLimitMiddleware(rdb, "public", cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst, win)
		} else {
			globalLimit = middleware.RateLimitMiddleware("global", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
			publicLimit = middleware.RateLimitMiddleware("public", cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst)
		}
		logger.Infof("rate limiting enabled (redis=%v)", cfg.RateLimit.UseRedis && rdb != nil)
	}

	var (
		rp          = memoryRepos()
		mongoClient *mongo.Client
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, func(attempt int, err error) {
			logger.Warnf("attempt %d/5: failed to connect to MongoDB: %v", attempt, err)
		})
		if err != nil {
			logger.Warnf("could not connect to MongoDB, using in-memory storage: %v", err)
		} else {
			mongoClient = client
			defer func() { _ = client.Disconnect(context.Background()) }()
			db := client.Database(cfg.MongoDB.Database)
			if err := database.EnsureIndexes(ctx, db); err != nil {
				logger.Warnf("ensure indexes: %v", err)
			}
			rp = mongoRepos(db)
			logger.Infof("using MongoDB database %s", cfg.MongoDB.Database)
		}
	} else {
		logger.Warnf("MONGODB_URI not set, data is kept in memory")
	}
	if rdb != nil {
		rp.sessions = sessions.NewRedisRepository(rdb, "session:")
	}

	var blobs storage.BlobStore = storage.NewMemoryStore()
	var minioStore *storage.MinIOStorage
	if mc := storage.LoadMinIOConfig(); mc.Endpoint != "" {
		s, err := storage.NewMinIOStorage(ctx, mc)
		if err != nil {
			logger.Warnf("minio %s unavailable, attachments kept in memory: %v", mc.Endpoint, err)
		} else {
			minioStore = s
			blobs = s
			logger.Infof("attachments stored in MinIO bucket %s", mc.Bucket)
		}
	}

	var sender notify.Sender = notify.NoopSender{}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	} else {
		logger.Infof("email provider %q: messages are logged, not sent", cfg.Email.Provider)
	}
	mail := notify.New(sender, notify.Options{From: cfg.Email.From, AdminAddress: cfg.Email.AdminAddress, Club: cfg.Club.Name})

	userSvc := users.NewService(rp.users)
	sessionsSvc := sessions.NewService(rp.sessions, cfg.JWT.RefreshTokenTTL)
	blacklist := sessions.NewBlacklist(rdb)
	appsSvc := applications.NewService(rp.applications, mail)
	invoicesSvc := invoices.NewService(rp.invoices, mail, invoices.Defaults{
		Currency: cfg.Club.Currency,
		TaxRate:  cfg.Club.TaxRate,
		DueDays:  cfg.Club.InvoiceDueDays,
	})
	paymentsSvc := payments.NewService(rp.payments, invoicesSvc, mail)
	membershipsSvc := memberships.NewService(rp.tiers, rp.memberships, invoicesSvc, mail, cfg.Club.Currency)
	paymentsSvc.OnInvoicePaid(membershipsSvc)
	marketSvc := marketplace.NewService(rp.categories, rp.listings, cfg.Club.Currency)

	hub := realtime.NewHub(originChecker(cfg.Server.AllowedOrigins))
	defer hub.Close()
	messagesSvc := messages.NewService(rp.messages, userSvc, marketSvc, blobs, hub, messages.Options{
		MaxAttachmentBytes: cfg.Club.AttachmentMaxBytes,
		OfferTTL:           cfg.Club.OfferTTL,
	})
	marketSvc.OnListingClosed(messagesSvc)

	var standingsCache standings.Cache
	if rdb != nil {
		standingsCache = standings.NewRedisCache(rdb, "standings:", 10*time.Minute)
	}
	standingsSvc := standings.NewService(rp.matches, standingsCache)
	dashboardSvc := dashboard.NewService(appsSvc, invoicesSvc, paymentsSvc, membershipsSvc, messagesSvc, marketSvc)

	if cfg.Admin.Email != "" {
		if _, created, err := userSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Errorf("bootstrap admin %s: %v", cfg.Admin.Email, err)
		} else if created {
			logger.Infof("created admin account %s", cfg.Admin.Email)
		}
	}

	// Local HS256 tokens first; Keycloak ID tokens are linked to local accounts.
	verifiers := []middleware.Verifier{tokens.NewHMACVerifier(cfg.JWT.Secret)}
	oidcReady := cfg.OIDC.URL == ""
	if issuer := cfg.OIDC.Issuer(); issuer != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifiers = append(verifiers, oidc.NewLinkedVerifier(ver, userSvc))
			oidcReady = true
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{"oidc": oidcReady}
		ready := oidcReady
		if cfg.MongoDB.URI != "" {
			deps["mongodb"] = mongoClient != nil && mongoClient.Ping(c.Request.Context(), nil) == nil
			ready = ready && deps["mongodb"]
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = rdb != nil && rdb.Ping(c.Request.Context()).Err() == nil
			ready = ready && deps["redis"]
		}
		if minioStore != nil {
			deps["storage"] = minioStore.Ping(c.Request.Context()) == nil
			ready = ready && deps["storage"]
		}
		status, state := http.StatusOK, "ready"
		if !ready {
			status, state = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.Register(r, handlers.Deps{
		JWT:          cfg.JWT,
		Verifier:     middleware.Chain(verifiers...),
		Blacklist:    blacklist,
		GlobalLimit:  globalLimit,
		PublicLimit:  publicLimit,
		MaxUpload:    cfg.Club.AttachmentMaxBytes*5 + 1<<20,
		Users:        userSvc,
		Sessions:     sessionsSvc,
		Applications: appsSvc,
		Invoices:     invoicesSvc,
		Payments:     paymentsSvc,
		Memberships:  membershipsSvc,
		Marketplace:  marketSvc,
		Messages:     messagesSvc,
		Standings:    standingsSvc,
		Dashboard:    dashboardSvc,
		Hub:          hub,
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r, "clubhub", version)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting clubhub %s on %s", version, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}
