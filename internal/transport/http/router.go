package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravets/parts_store/internal/handlers"
	"github.com/mkravets/parts_store/internal/handlers/auth"
	"github.com/mkravets/parts_store/internal/handlers/cart"
	"github.com/mkravets/parts_store/internal/handlers/operator"
	"github.com/mkravets/parts_store/internal/handlers/storekeeper"
	"github.com/mkravets/parts_store/internal/models"
	"github.com/mkravets/parts_store/internal/service"
)

type Deps struct {
	DB                 *gorm.DB
	AuthHandler        *auth.AuthHandler
	CatalogHandler     *handlers.CatalogHandler
	SearchHandler      *handlers.SearchHandler
	CartHandler        *cart.CartHandler
	OperatorHandler    *operator.OperatorHandler
	StorekeeperHandler *storekeeper.StorekeeperHandler
	TokenService       *service.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/profile", d.AuthHandler.Profile, d.TokenService.AutoRefreshMiddleware)

	v1.GET("/categories", d.CatalogHandler.GetCategories)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)

	cartg := v1.Group("/cart")
	cartg.GET("", d.CartHandler.GetCart)
	cartg.POST("", d.CartHandler.AddToCart)
	cartg.PATCH("", d.CartHandler.UpdateQuantity)
	cartg.DELETE("/:id", d.CartHandler.RemoveFromCart)
	cartg.POST("/checkout", d.CartHandler.Checkout, d.TokenService.AutoRefreshMiddleware)

	myOrders := v1.Group("/orders", d.TokenService.AutoRefreshMiddleware)
	myOrders.GET("", d.CartHandler.MyOrders)
	myOrders.GET("/:id", d.CartHandler.OrderDetails)

	op := v1.Group("/operator",
		d.TokenService.AutoRefreshMiddleware,
		d.TokenService.RequireRole(models.RoleOperator),
	)
	op.GET("/orders", d.OperatorHandler.ListOrders)
	op.GET("/orders/:id", d.OperatorHandler.OrderDetails)
	op.POST("/orders/status", d.OperatorHandler.UpdateOrderStatus)
	op.GET("/statistics", d.OperatorHandler.Statistics)
	op.GET("/products", d.OperatorHandler.ListProducts)
	op.POST("/products", d.OperatorHandler.CreateProduct)
	op.PATCH("/products/:id", d.OperatorHandler.PatchProduct)
	op.DELETE("/products/:id", d.OperatorHandler.DeleteProduct)

	sk := v1.Group("/storekeeper",
		d.TokenService.AutoRefreshMiddleware,
		d.TokenService.RequireRole(models.RoleStorekeeper),
	)
	sk.GET("/orders", d.StorekeeperHandler.Queue)
	sk.GET("/orders/:id", d.StorekeeperHandler.OrderDetails)
	sk.GET("/orders/:id/packing-list", d.StorekeeperHandler.PackingList)
	sk.POST("/orders/start-packing", d.StorekeeperHandler.StartPacking)
	sk.POST("/orders/finish-packing", d.StorekeeperHandler.FinishPacking)
	sk.POST("/orders/ship", d.StorekeeperHandler.Ship)
	sk.POST("/orders/reject", d.StorekeeperHandler.Reject)
	sk.GET("/inventory", d.StorekeeperHandler.Inventory)
	sk.POST("/inventory/availability", d.StorekeeperHandler.UpdateAvailability)
}
