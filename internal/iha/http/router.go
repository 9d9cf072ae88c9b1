package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/internal/iha/oidc"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/aussiebroadwan/iha/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/iha/api/iha" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	gatherer prometheus.Gatherer

	Manager *authn.Manager
	Builder *authz.Builder
	Tokens  *authz.TokenIssuer

	// KeyClients lists clients with their own signing key, published at
	// the jwks endpoint next to the global keys.
	KeyClients []string
}

// NewRouter returns a router with the default middleware chain. gatherer
// backs /metrics and may be nil to serve the default registry.
func NewRouter(
	issuer, buildVersion string,
	st store.Store,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		gatherer:     gatherer,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerOIDC()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			iha Authorization Server API
//	@version		0.1.0
//	@description	OAuth2 and OpenID Connect authorization server issuing JWT access and ID tokens.
//	@description
//	@description				Tokens are signed with the key configured per client, falling back to the global key. Public keys are published at /.well-known/jwks.json.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/iha
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		Manager: r.Manager,
		Builder: r.Builder,
		Clients: r.store.Clients(),
	}

	// Authorization requests carry end-user credentials.
	authorize := httpx.Chain(authorizeHandler, httpx.RateLimitByIP(httpx.AuthorizeLimit))
	r.Mux.Handle("GET "+oidc.PathAuthorize, authorize)
	r.Mux.Handle("POST "+oidc.PathAuthorize, authorize)

	tokenHandler := &TokenHandler{
		Manager: r.Manager,
		Builder: r.Builder,
		Clients: r.store.Clients(),
	}
	r.Mux.Handle("POST "+oidc.PathToken,
		httpx.Chain(tokenHandler,
			httpx.RateLimitByClient(httpx.TokenLimit),
		),
	)
}

func (r *Router) registerOIDC() {
	userInfo := httpx.Chain(&UserInfoHandler{Users: r.store.Users()},
		httpx.BearerAuth(r.Tokens),              // verify JWT (iss/aud/exp)
		httpx.RequireAnyScope(oidc.ScopeOpenID), // enforce scopes
		httpx.RateLimitByIP(httpx.PublicLimit),
	)
	r.Mux.Handle("GET "+oidc.PathUserInfo, userInfo)
	r.Mux.Handle("POST "+oidc.PathUserInfo, userInfo)

	r.Mux.Handle("GET "+oidc.PathJWKS,
		httpx.Chain(JWKSHandler(r.Tokens, r.KeyClients),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET "+oidc.PathDiscovery,
		httpx.Chain(DiscoveryHandler(r.issuer, r.Tokens),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Probes and scrapes are not rate limited.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Tokens))
	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
}
