package handlers

import (
	"aurelia/internal/catalog"
	"aurelia/internal/config"
	"aurelia/internal/domain"
	"aurelia/internal/payments"
	"aurelia/internal/repos"
	"aurelia/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Deps struct {
	AuthHandler         *AuthHandler
	CartHandler         *ListHandler
	WishlistHandler     *ListHandler
	CatalogHandler      *CatalogHandler
	AvailabilityHandler *AvailabilityHandler
	OrderHandler        *OrderHandler
	AdminHandler        *AdminHandler
}

func NewDeps(db *sqlx.DB, rdb *redis.Client, pm *catalog.PartitionMap, cfg config.Config, auth *services.AuthService) *Deps {
	local := repos.NewLocalStore(db)
	fallback := repos.NewFallbackCache(0)
	remote := repos.NewRemoteStore(rdb, fallback, cfg.RemoteTimeout)
	orderRepo := repos.NewOrderRepo(db)
	userRepo := repos.NewUserRepo(db)

	gateway := catalog.NewClient(cfg.GatewayURL, catalog.WithTimeout(cfg.GatewayTimeout))

	cartMgr := &services.ListManager{Kind: domain.KindCart, Local: local, Remote: remote}
	wishMgr := &services.ListManager{Kind: domain.KindWishlist, Local: local, Remote: remote}
	stockSvc := &services.StockService{Catalog: gateway, Partitions: pm, Retries: cfg.StockRetries}
	orderSvc := &services.OrderService{
		Cart:     cartMgr,
		Stock:    stockSvc,
		Orders:   orderRepo,
		Verifier: payments.Verifier{Secret: cfg.PaymentSecret},
	}

	return &Deps{
		AuthHandler:         &AuthHandler{Auth: auth, Cart: cartMgr, Wishlist: wishMgr},
		CartHandler:         &ListHandler{Manager: cartMgr},
		WishlistHandler:     &ListHandler{Manager: wishMgr},
		CatalogHandler:      &CatalogHandler{Catalog: gateway, Partitions: pm},
		AvailabilityHandler: &AvailabilityHandler{Stock: stockSvc},
		OrderHandler:        &OrderHandler{Order: orderSvc, Repo: orderRepo},
		AdminHandler:        &AdminHandler{OrderRepo: orderRepo, Users: userRepo, Catalog: gateway, Partitions: pm},
	}
}
