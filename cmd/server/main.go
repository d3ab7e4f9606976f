package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/apimeter/apimeter/modules/auth"
	"github.com/apimeter/apimeter/modules/billing"
	"github.com/apimeter/apimeter/modules/organization"
	"github.com/apimeter/apimeter/pkg/config"
	"github.com/apimeter/apimeter/pkg/httpserver"
	"github.com/apimeter/apimeter/pkg/jwt"
	"github.com/apimeter/apimeter/pkg/logger"
	"github.com/apimeter/apimeter/pkg/pg"
	"github.com/apimeter/apimeter/pkg/ratelimiter"
	"github.com/apimeter/apimeter/pkg/redis"
	"github.com/apimeter/apimeter/pkg/response"
)

type appConfig struct {
	Logger logger.Config
	HTTP   httpserver.Config
	PG     pg.Config
	Redis  redis.Config
	Paddle billing.PaddleConfig

	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"apimeter"`

	// PlanCatalogPath points at a YAML price table; empty uses the
	// built-in catalog.
	PlanCatalogPath string `env:"PLAN_CATALOG_PATH"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Logger, logger.WithAttrs(logger.Component("server")))
	ctx := context.Background()

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		log.ErrorContext(ctx, "failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close() //nolint:errcheck

	tokens, err := jwt.New([]byte(cfg.JWTSigningKey), cfg.JWTIssuer)
	if err != nil {
		log.ErrorContext(ctx, "failed to initialize token service", logger.Error(err))
		os.Exit(1)
	}

	catalog := billing.DefaultCatalog()
	if cfg.PlanCatalogPath != "" {
		catalog, err = billing.LoadCatalog(cfg.PlanCatalogPath)
		if err != nil {
			log.ErrorContext(ctx, "failed to load plan catalog", logger.Error(err))
			os.Exit(1)
		}
	}

	gateway, err := billing.NewPaddleGateway(cfg.Paddle)
	if err != nil {
		log.ErrorContext(ctx, "failed to initialize billing gateway", logger.Error(err))
		os.Exit(1)
	}

	// Stores.
	billingStore := billing.NewPGStore(pool)
	orgStore := organization.NewPGStore(pool)
	authStorage := auth.NewPGStorage(pool)

	// Services. Billing needs the organization directory for customer
	// creation; organizations need the auth hook for owner assignment.
	authSvc := auth.NewService(authStorage, tokens, log)
	orgSvc := organization.NewService(orgStore, authSvc.AssignOrganization, log)
	billingSvc := billing.NewService(billingStore, gateway, catalog, orgSvc.Directory(), log)

	resolver := auth.NewResolver(authStorage, tokens, billingSvc.Snapshot, log)
	limiter := ratelimiter.NewRedisStore(redisClient, "apimeter")

	principalOrg := func(r *http.Request) (uuid.UUID, bool) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok || p.OrganizationID == uuid.Nil {
			return uuid.Nil, false
		}
		return p.OrganizationID, true
	}
	principal := func(r *http.Request) (uuid.UUID, uuid.UUID, bool) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			return uuid.Nil, uuid.Nil, false
		}
		return p.User.ID, p.OrganizationID, true
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	pgProbe := pg.Healthcheck(pool)
	redisProbe := redis.Healthcheck(redisClient)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := pgProbe(req.Context()); err != nil {
			response.Error(w, err)
			return
		}
		if err := redisProbe(req.Context()); err != nil {
			response.Error(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", auth.Router(authSvc, resolver))

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(resolver))
			r.Use(auth.RateLimitMiddleware(limiter))
			members := func(ctx context.Context, orgID uuid.UUID) ([]organization.Member, error) {
				users, err := authSvc.Members(ctx, orgID)
				if err != nil {
					return nil, err
				}
				out := make([]organization.Member, 0, len(users))
				for _, u := range users {
					out = append(out, organization.Member{
						ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role),
					})
				}
				return out, nil
			}
			r.Mount("/organization", organization.Router(orgSvc, principal, members, billingSvc.Snapshot))
			r.Mount("/billing", billing.Router(billingSvc, principalOrg))
		})

		// Webhooks authenticate by signature, not by principal.
		r.Post("/webhooks/paddle", billing.WebhookHandler(billingSvc))
	})

	if err := httpserver.New(cfg.HTTP, log).Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}
