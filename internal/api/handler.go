package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sales-service/internal/cep"
	"sales-service/internal/erp"
	"sales-service/internal/models"
	"sales-service/internal/service"
	"sales-service/internal/store"
	"sales-service/internal/util"
)

// ProductLister lists the ERP catalog.
type ProductLister interface {
	Products(ctx context.Context, priceListID string) ([]erp.Product, error)
}

// CEPLookup resolves postal codes.
type CEPLookup interface {
	Lookup(ctx context.Context, raw string) (*cep.Address, error)
}

// Handler contains HTTP handlers
type Handler struct {
	orders     *service.OrderService
	clients    *service.ClientService
	priceLists *service.PriceListService
	products   ProductLister
	cep        CEPLookup
	env        string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	clients *service.ClientService,
	priceLists *service.PriceListService,
	products ProductLister,
	cepClient CEPLookup,
	env string,
) *Handler {
	return &Handler{
		orders:     orders,
		clients:    clients,
		priceLists: priceLists,
		products:   products,
		cep:        cepClient,
		env:        env,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, corsOrigin string) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	corsCfg := cors.DefaultConfig()
	if corsOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{corsOrigin}
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/products", h.listProducts)

		v1.POST("/clients", h.createClient)
		v1.GET("/clients", h.listClients)
		v1.GET("/clients/:id", h.getClient)
		v1.PUT("/clients/:id", h.updateClient)
		v1.DELETE("/clients/:id", h.deleteClient)

		v1.POST("/prices-lists", h.createPriceList)
		v1.GET("/prices-lists", h.listPriceLists)
		v1.GET("/prices-lists/:id", h.getPriceList)
		v1.PUT("/prices-lists/:id", h.updatePriceList)
		v1.DELETE("/prices-lists/:id", h.deletePriceList)

		v1.POST("/budgets", h.createBudget)
		v1.POST("/orders", h.submitOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.transitionStatus)
		v1.PATCH("/orders/:id/prices", h.updatePrices)
		v1.POST("/orders/:id/images", h.attachImages)
		v1.GET("/orders/:id/pdf", h.orderPDF)

		v1.GET("/cep/:cep", h.lookupCEP)
	}
}

// envelope is the conventional response shape.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Message: message})
}

// respondError maps domain errors onto HTTP statuses. Everything
// unrecognized is a 500 with detail only outside production.
func (h *Handler) respondError(c *gin.Context, err error) {
	var illegal *service.IllegalTransitionError
	var inUse *service.PriceListInUseError
	var apiErr *erp.APIError

	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateClient):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPriceLocked):
		fail(c, http.StatusConflict, err.Error())
	case errors.As(err, &illegal):
		fail(c, http.StatusConflict, illegal.Error())
	case errors.As(err, &inUse):
		fail(c, http.StatusConflict, inUse.Error())
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, cep.ErrInvalidCEP):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cep.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUpstream), errors.As(err, &apiErr):
		fail(c, http.StatusBadGateway, "upstream service failed")
	default:
		if h.env == "production" {
			fail(c, http.StatusInternalServerError, "internal error")
			return
		}
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// --- products ---

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.Products(c.Request.Context(), c.Query("price_list"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "products listed", products)
}

// --- clients ---

func (h *Handler) createClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.clients.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "client created", client)
}

func (h *Handler) listClients(c *gin.Context) {
	clients, err := h.clients.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "clients listed", clients)
}

func (h *Handler) getClient(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	client, err := h.clients.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "client found", client)
}

func (h *Handler) updateClient(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	// Same binding rules as creation so an empty body cannot blank out
	// required fields.
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	client := models.Client{
		ID:          id,
		Name:        req.Name,
		Email:       req.Email,
		Document:    req.Document,
		Phone:       req.Phone,
		Address:     req.Address,
		PriceListID: req.PriceListID,
	}

	if err := h.clients.Update(c.Request.Context(), &client); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "client updated", client)
}

func (h *Handler) deleteClient(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.clients.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "client deleted", nil)
}

// --- price lists ---

func (h *Handler) createPriceList(c *gin.Context) {
	var list models.PriceList
	if err := c.ShouldBindJSON(&list); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if list.Name == "" {
		fail(c, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.priceLists.Create(c.Request.Context(), &list); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "price list created", list)
}

func (h *Handler) listPriceLists(c *gin.Context) {
	lists, err := h.priceLists.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "price lists listed", lists)
}

func (h *Handler) getPriceList(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	list, err := h.priceLists.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "price list found", list)
}

func (h *Handler) updatePriceList(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	var list models.PriceList
	if err := c.ShouldBindJSON(&list); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	list.ID = id

	if err := h.priceLists.Update(c.Request.Context(), &list); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "price list updated", list)
}

func (h *Handler) deletePriceList(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.priceLists.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "price list deleted", nil)
}

// --- orders / budgets ---

func (h *Handler) createBudget(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.orders.CreateBudget(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "budget created", resp)
}

func (h *Handler) submitOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.orders.SubmitOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "order submitted", resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	kind := models.OrderKind(c.DefaultQuery("kind", string(models.KindOrder)))
	if kind != models.KindBudget && kind != models.KindOrder {
		fail(c, http.StatusBadRequest, "kind must be BUDGET or ORDER")
		return
	}

	var status models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !models.OrderStatus(n).Valid() {
			fail(c, http.StatusBadRequest, "invalid status")
			return
		}
		status = models.OrderStatus(n)
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), kind, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "orders listed", orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "order found", order)
}

type transitionRequest struct {
	Status int `json:"status" binding:"required"`
}

func (h *Handler) transitionStatus(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.TransitionStatus(c.Request.Context(), id, models.OrderStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "status updated", order)
}

type priceUpdateRequest struct {
	Items []service.PriceUpdate `json:"items" binding:"required,min=1,dive"`
}

func (h *Handler) updatePrices(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	var req priceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.UpdateLineItemPrices(c.Request.Context(), id, req.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "prices updated", order)
}

func (h *Handler) attachImages(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, "multipart form required")
		return
	}

	files := form.File["images"]
	uploads := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "unreadable file: "+fh.Filename)
			return
		}
		defer f.Close()
		uploads = append(uploads, service.ImageUpload{Filename: fh.Filename, Data: f})
	}

	urls, err := h.orders.AttachImages(c.Request.Context(), id, uploads)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "images attached", gin.H{"image_urls": urls})
}

func (h *Handler) orderPDF(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	out, err := h.orders.ProposalPDF(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=pedido_"+strconv.FormatInt(id, 10)+".pdf")
	c.Data(http.StatusOK, "application/pdf", out)
}

// --- cep ---

func (h *Handler) lookupCEP(c *gin.Context) {
	addr, err := h.cep.Lookup(c.Request.Context(), c.Param("cep"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "cep found", addr)
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
