package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digimartlabs/digimart-backend/api/controllers"
	"github.com/digimartlabs/digimart-backend/api/middleware"
	"github.com/digimartlabs/digimart-backend/internal/activity"
	checkoutsvc "github.com/digimartlabs/digimart-backend/internal/checkout"
	"github.com/digimartlabs/digimart-backend/internal/notifications"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/products"
	"github.com/digimartlabs/digimart-backend/internal/reaper"
	"github.com/digimartlabs/digimart-backend/internal/reviews"
	"github.com/digimartlabs/digimart-backend/internal/stores"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/internal/users"
	"github.com/digimartlabs/digimart-backend/internal/wallet"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	pkgredis "github.com/digimartlabs/digimart-backend/pkg/redis"
)

type Services struct {
	Users         *users.Service
	Stores        *stores.Service
	Products      *products.Service
	Checkout      *checkoutsvc.Service
	Orders        *orders.Service
	Wallet        *wallet.Service
	Transactions  *txlog.Service
	Reviews       *reviews.Service
	Activity      *activity.Service
	Notifications *notifications.Service
	Reaper        *reaper.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *pkgredis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", controllers.RegisterUser(svcs.Users, logg))
		r.Get("/stores/{slug}", controllers.StoreBySlug(svcs.Stores, logg))
		r.Get("/stores/{storeId}/products", controllers.StoreProducts(svcs.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svcs.Products, logg))
		r.Get("/products/{productId}/reviews", controllers.ProductReviews(svcs.Reviews, logg))
		r.Get("/products/{productId}/reviews/summary", controllers.ProductReviewSummary(svcs.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.RequireUser(logg),
				middleware.Idempotency(redisClient, logg),
			)

			r.Get("/me", controllers.CurrentUser(svcs.Users, logg))
			r.Get("/me/stores", controllers.MyStores(svcs.Stores, logg))
			r.Get("/me/activity", controllers.MyActivity(svcs.Activity, logg))

			r.Post("/stores", controllers.CreateStore(svcs.Stores, logg))
			r.Post("/products", controllers.CreateProduct(svcs.Products, svcs.Stores, logg))
			r.Post("/products/{productId}/assets", controllers.ProvisionAssets(svcs.Products, logg))

			r.Post("/orders", controllers.PlaceOrder(svcs.Checkout, svcs.Activity, svcs.Reviews, logg))
			r.Get("/orders", controllers.MyOrders(svcs.Orders, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Get("/orders/ref/{reference}", controllers.OrderByReference(svcs.Orders, logg))

			r.Post("/wallet/deposits", controllers.Deposit(svcs.Wallet, svcs.Activity, logg))
			r.Get("/wallet/balances", controllers.Balances(svcs.Wallet, logg))
			r.Get("/transactions", controllers.MyTransactions(svcs.Transactions, logg))
			r.Get("/transactions/ref/{reference}", controllers.TransactionByReference(svcs.Transactions, logg))

			r.Post("/reviews", controllers.SubmitReview(svcs.Reviews, logg))

			r.Get("/notifications", controllers.MyNotifications(svcs.Notifications, logg))
			r.Get("/notifications/unread-count", controllers.UnreadCount(svcs.Notifications, logg))
			r.Post("/notifications/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminAuth, logg))
		r.Get("/reaper", controllers.ReaperStatus(svcs.Reaper, logg))
		r.Post("/reaper/start", controllers.ReaperStart(svcs.Reaper, logg))
		r.Post("/reaper/stop", controllers.ReaperStop(svcs.Reaper, logg))
		r.Post("/reaper/run", controllers.ReaperRun(svcs.Reaper, logg))
	})

	return r
}
