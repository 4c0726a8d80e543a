package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kzarre/kzarre-backend/api/controllers"
	webhookcontrollers "github.com/kzarre/kzarre-backend/api/controllers/webhooks"
	"github.com/kzarre/kzarre-backend/api/middleware"
	"github.com/kzarre/kzarre-backend/internal/adminauth"
	"github.com/kzarre/kzarre-backend/internal/audit"
	"github.com/kzarre/kzarre-backend/internal/campaigns"
	"github.com/kzarre/kzarre-backend/internal/catalog"
	checkoutsvc "github.com/kzarre/kzarre-backend/internal/checkout"
	"github.com/kzarre/kzarre-backend/internal/cms"
	"github.com/kzarre/kzarre-backend/internal/orders"
	"github.com/kzarre/kzarre-backend/internal/payments"
	"github.com/kzarre/kzarre-backend/internal/privacy"
	"github.com/kzarre/kzarre-backend/internal/rbac"
	"github.com/kzarre/kzarre-backend/internal/traffic"
	"github.com/kzarre/kzarre-backend/pkg/auth/session"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/redis"
	"github.com/kzarre/kzarre-backend/pkg/stripe"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	AdminAuth adminauth.Service
	Roles     rbac.Service
	Catalog   catalog.Service
	Checkout  checkoutsvc.Service
	Orders    orders.Service
	Payments  payments.Service
	CMS       cms.Service
	Campaigns campaigns.Service
	Traffic   traffic.Service
	Privacy   privacy.Service
	Audit     audit.Service

	Stripe *stripe.Client
}

// NewRouter wires the public storefront, webhook, and admin surfaces.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/{slug}", controllers.GetProductBySlug(deps.Catalog, logg))
		})

		r.Post("/checkout", controllers.CreateOrder(deps.Checkout, logg))
		r.Post("/checkout/paypal/capture", controllers.CapturePayPalOrder(deps.Payments, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderNumber}", controllers.GetOrder(deps.Orders, logg))
			r.Post("/{orderNumber}/cancel", controllers.CancelOrder(deps.Orders, logg))
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/", controllers.ListPublishedContent(deps.CMS, logg))
			r.Get("/{slug}", controllers.GetPublishedContent(deps.CMS, logg))
		})

		r.Route("/newsletter", func(r chi.Router) {
			r.Post("/subscribe", controllers.Subscribe(deps.Campaigns, logg))
			r.Post("/unsubscribe", controllers.Unsubscribe(deps.Campaigns, logg))
		})

		r.Post("/track", controllers.TrackPageView(deps.Traffic, logg))
		r.Post("/privacy/requests", controllers.CreateDataRequest(deps.Privacy, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.Payments, deps.Stripe, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AdminLogin(deps.AdminAuth, logg))
		r.Post("/refresh", controllers.AdminRefresh(deps.AdminAuth, logg))
		r.Post("/logout", controllers.AdminLogout(deps.AdminAuth, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, deps.AdminAuth, logg))
		r.Use(middleware.AuditTrail(deps.Audit, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(deps.Catalog, logg))
			r.Get("/{productId}", controllers.AdminGetProduct(deps.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(rbac.CapCatalogWrite, logg))
				r.Post("/", controllers.AdminCreateProduct(deps.Catalog, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.Catalog, logg))
				r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Catalog, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireCapability(rbac.CapOrdersRead, logg)).Get("/", controllers.AdminListOrders(deps.Orders, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(rbac.CapOrdersWrite, logg))
				r.Patch("/{orderNumber}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
				r.Post("/{orderNumber}/cancel", controllers.AdminCancelOrder(deps.Orders, logg))
				r.Post("/{orderNumber}/confirm-cod", controllers.AdminConfirmCOD(deps.Orders, logg))
			})
		})

		r.Route("/content", func(r chi.Router) {
			r.Use(middleware.RequireCapability(rbac.CapCMSWrite, logg))
			r.Get("/", controllers.AdminListContent(deps.CMS, logg))
			r.Post("/", controllers.AdminCreateContent(deps.CMS, logg))
			r.Get("/{contentId}", controllers.AdminGetContent(deps.CMS, logg))
			r.Patch("/{contentId}", controllers.AdminUpdateContent(deps.CMS, logg))
			r.Delete("/{contentId}", controllers.AdminDeleteContent(deps.CMS, logg))
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Use(middleware.RequireCapability(rbac.CapCampaignsWrite, logg))
			r.Get("/", controllers.AdminListCampaigns(deps.Campaigns, logg))
			r.Post("/", controllers.AdminCreateCampaign(deps.Campaigns, logg))
			r.Get("/{campaignId}", controllers.AdminGetCampaign(deps.Campaigns, logg))
			r.Patch("/{campaignId}", controllers.AdminUpdateCampaign(deps.Campaigns, logg))
			r.Post("/{campaignId}/schedule", controllers.AdminScheduleCampaign(deps.Campaigns, logg))
			r.Delete("/{campaignId}", controllers.AdminDeleteCampaign(deps.Campaigns, logg))
		})
		r.With(middleware.RequireCapability(rbac.CapCampaignsWrite, logg)).
			Get("/subscribers", controllers.AdminListSubscribers(deps.Campaigns, logg))

		r.Route("/traffic", func(r chi.Router) {
			r.Use(middleware.RequireCapability(rbac.CapTrafficRead, logg))
			r.Get("/events", controllers.AdminListTrafficEvents(deps.Traffic, logg))
			r.Get("/stats", controllers.AdminTrafficStats(deps.Traffic, logg))
		})

		r.Route("/audit", func(r chi.Router) {
			r.With(middleware.RequireCapability(rbac.CapAuditRead, logg)).Get("/settings", controllers.AdminGetAuditSettings(deps.Audit, logg))
			r.With(middleware.RequireCapability(rbac.CapAuditWrite, logg)).Put("/settings", controllers.AdminSaveAuditSettings(deps.Audit, logg))
			r.With(middleware.RequireCapability(rbac.CapAuditRead, logg)).Get("/logs", controllers.AdminListAuditLogs(deps.Audit, logg))
		})

		r.Route("/privacy/requests", func(r chi.Router) {
			r.Use(middleware.RequireCapability(rbac.CapPrivacyWrite, logg))
			r.Get("/", controllers.AdminListDataRequests(deps.Privacy, logg))
			r.Get("/{requestId}", controllers.AdminGetDataRequest(deps.Privacy, logg))
			r.Post("/{requestId}/export", controllers.AdminProcessExport(deps.Privacy, logg))
			r.Post("/{requestId}/erase", controllers.AdminProcessErasure(deps.Privacy, logg))
			r.Post("/{requestId}/reject", controllers.AdminRejectDataRequest(deps.Privacy, logg))
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(middleware.RequireCapability(rbac.CapRolesWrite, logg))
			r.Get("/", controllers.AdminListRoles(deps.Roles, logg))
			r.Post("/", controllers.AdminCreateRole(deps.Roles, logg))
			r.Get("/{roleId}", controllers.AdminGetRole(deps.Roles, logg))
			r.Patch("/{roleId}", controllers.AdminUpdateRole(deps.Roles, logg))
			r.Delete("/{roleId}", controllers.AdminDeleteRole(deps.Roles, logg))
		})
		r.With(middleware.RequireCapability(rbac.CapRolesWrite, logg)).
			Get("/capabilities", controllers.ListCapabilities(logg))

		r.Route("/admins", func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin(logg))
			r.Get("/", controllers.AdminListAdmins(deps.AdminAuth, logg))
			r.Post("/", controllers.AdminCreateAdmin(deps.AdminAuth, logg))
			r.Get("/{adminId}", controllers.AdminGetAdmin(deps.AdminAuth, logg))
			r.Patch("/{adminId}", controllers.AdminUpdateAdmin(deps.AdminAuth, logg))
		})
	})

	return r
}
