package router

import (
	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/config"
	"github.com/petalhouse/petalhouse-backend/internal/app/controller"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
)

type Router struct {
	authController       *controller.AuthController
	productController    *controller.ProductController
	cartController       *controller.CartController
	orderController      *controller.OrderController
	adminOrderController *controller.AdminOrderController
	feedController       *controller.FeedController
	authMiddleware       *middleware.AuthMiddleware
	config               *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	cartController *controller.CartController,
	orderController *controller.OrderController,
	adminOrderController *controller.AdminOrderController,
	feedController *controller.FeedController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:       authController,
		productController:    productController,
		cartController:       cartController,
		orderController:      orderController,
		adminOrderController: adminOrderController,
		feedController:       feedController,
		authMiddleware:       authMiddleware,
		config:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Petal House API is running",
		})
	})

	admin := string(model.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.RefreshToken)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.GetMe)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProduct)
		}

		// 비회원도 세션 ID로 장바구니와 주문을 사용할 수 있음
		cart := v1.Group("/cart")
		cart.Use(r.authMiddleware.OptionalAuthenticate(), middleware.Session())
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("/items", r.cartController.AddItem)
			cart.PUT("/items/:id", r.cartController.UpdateItem)
			cart.DELETE("/items/:id", r.cartController.RemoveItem)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/merge", r.authMiddleware.Authenticate(), r.cartController.MergeGuestCart)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("",
				r.authMiddleware.OptionalAuthenticate(),
				middleware.Session(),
				r.orderController.CreateOrder,
			)
			orders.GET("", r.authMiddleware.Authenticate(), r.orderController.GetOrders)
			orders.GET("/:id", r.authMiddleware.Authenticate(), r.orderController.GetOrderByID)
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireRole(admin))
		{
			adminGroup.GET("/orders", r.adminOrderController.ListOrders)
			adminGroup.GET("/orders/export", r.adminOrderController.ExportOrders)
			adminGroup.GET("/orders/:id", r.adminOrderController.GetOrder)
			adminGroup.PUT("/orders/:id/status", r.adminOrderController.UpdateOrderStatus)
			adminGroup.PUT("/orders/:id/items/:index/quantity", r.adminOrderController.UpdateOrderItem)
			adminGroup.DELETE("/orders/:id/items/:index", r.adminOrderController.RemoveOrderItem)
			adminGroup.DELETE("/orders/:id", r.adminOrderController.DeleteOrder)

			adminGroup.POST("/products/import", r.productController.ImportCatalog)
			adminGroup.POST("/products/:id/restock", r.productController.Restock)

			adminGroup.GET("/feed", r.feedController.Connect)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Session-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Session-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
