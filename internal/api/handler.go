package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/service"
	"github.com/chinmaymk2005/my-local-shop/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	shops    *service.ShopService
	verifier TokenVerifier
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, shops *service.ShopService, verifier TokenVerifier) *Handler {
	return &Handler{
		orders:   orders,
		shops:    shops,
		verifier: verifier,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/shops/nearby", h.nearbyShops)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(h.verifier))
	{
		authed.POST("/orders", h.createOrder)
		authed.PUT("/orders/:id/confirm", h.confirmOrder)
		authed.PUT("/orders/:id/complete", h.completeOrder)
		authed.PUT("/orders/:id/cancel", h.cancelOrder)
		authed.GET("/orders/my", h.myOrders)
		authed.GET("/orders/shop", h.shopOrders)
		authed.GET("/shops/my", h.myShop)
		authed.POST("/products", h.upsertProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.CustomerID = actorID(c)

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// confirmOrder handles shop-owner confirmation of an order
func (h *Handler) confirmOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orders.ConfirmOrder(c.Request.Context(), orderID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// completeOrder handles handover of a confirmed order
func (h *Handler) completeOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orders.CompleteOrder(c.Request.Context(), orderID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// cancelOrder handles cancellation by the customer or the shop owner
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), orderID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// myOrders lists the calling customer's orders, newest first
func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orders.ListCustomerOrders(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

// shopOrders lists the calling shop owner's orders, newest first
func (h *Handler) shopOrders(c *gin.Context) {
	orders, err := h.orders.ListShopOrders(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

// nearbyShops ranks active shops by distance from the given origin
func (h *Handler) nearbyShops(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		respondError(c, apperr.InvalidArgument("lat must be a finite number"))
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		respondError(c, apperr.InvalidArgument("lng must be a finite number"))
		return
	}

	var radiusKm float64
	if raw := c.Query("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, apperr.InvalidArgument("radius_km must be a finite number"))
			return
		}
	}

	matches, err := h.shops.NearbyShops(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(matches), "shops": matches})
}

// myShop returns the calling owner's shop
func (h *Handler) myShop(c *gin.Context) {
	shop, err := h.shops.GetShop(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"shop": shop})
}

// upsertProduct creates or updates a listing in the owner's shop
func (h *Handler) upsertProduct(c *gin.Context) {
	var req service.UpsertProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	product, action, err := h.shops.UpsertProduct(c.Request.Context(), actorID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if action == service.ProductCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"action": action, "product": product})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.InvalidArgument("invalid order id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// respondError maps an error kind to an HTTP status. Structured failures
// carry their kind in the body so clients can branch without parsing text.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUnavailable:
		status = http.StatusConflict
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindInvalidState:
		status = http.StatusUnprocessableEntity
	case apperr.KindInvalidArgument:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	body := gin.H{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
	}
	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
