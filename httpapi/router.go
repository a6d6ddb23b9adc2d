// Package httpapi binds forest.Service to the wire API described in
// SPEC_FULL.md §6: thin gin routing, header-based tenant selection, and
// error-kind-to-status mapping. No tree algorithm lives here.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/go-bumbu/forest"
)

// Options configures the router beyond what Service itself needs.
type Options struct {
	// CORSOrigins is passed straight to gin-contrib/cors' AllowOrigins.
	CORSOrigins []string
	// Production disables bulk-load and delete-tenant, per spec §7's
	// ForbiddenInProduction kind.
	Production bool
}

// NewRouter wires the six Wire API routes onto svc.
func NewRouter(svc *forest.Service, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Timing())

	corsCfg := cors.DefaultConfig()
	if len(opts.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = opts.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "org-id")
	r.Use(cors.New(corsCfg))

	h := &handler{svc: svc, production: opts.Production}

	api := r.Group("/api")
	api.GET("/tree", h.getTree)
	api.POST("/tree", h.createNode)
	api.POST("/tree/move", h.moveNode)
	api.POST("/tree/clone", h.cloneNode)
	api.POST("/tree/bulk", h.bulkLoad)
	api.DELETE("/tree", h.deleteTenant)

	return r
}

type handler struct {
	svc        *forest.Service
	production bool
}

func tenantFromRequest(c *gin.Context) string {
	return c.GetHeader("org-id")
}

type createNodeRequest struct {
	Label    string  `json:"label" binding:"required"`
	ParentID *string `json:"parentId"`
}

type createNodeResponse struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	ParentID *string `json:"parentId"`
}

func (h *handler) createNode(c *gin.Context) {
	var req createNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := h.svc.Insert(c.Request.Context(), tenantFromRequest(c), req.Label, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createNodeResponse{
		ID:       node.ID,
		Label:    node.Label,
		ParentID: node.ParentID,
	})
}

func (h *handler) getTree(c *gin.Context) {
	doc, err := h.svc.Forest(c.Request.Context(), tenantFromRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
}

type moveNodeRequest struct {
	SourceID string  `json:"sourceId" binding:"required"`
	TargetID *string `json:"targetId"`
}

type moveNodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *handler) moveNode(c *gin.Context) {
	var req moveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.Move(c.Request.Context(), tenantFromRequest(c), req.SourceID, req.TargetID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, moveNodeResponse{Success: true, Message: "moved"})
}

type cloneNodeRequest struct {
	SourceID string  `json:"sourceId" binding:"required"`
	TargetID *string `json:"targetId"`
}

type cloneNodeResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	ID      *string `json:"id"`
}

func (h *handler) cloneNode(c *gin.Context) {
	var req cloneNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newID, err := h.svc.Clone(c.Request.Context(), tenantFromRequest(c), req.SourceID, req.TargetID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cloneNodeResponse{Success: true, Message: "cloned", ID: &newID})
}

type bulkEntryRequest struct {
	ID       string  `json:"id" binding:"required"`
	Label    string  `json:"label" binding:"required"`
	ParentID *string `json:"parentId"`
	RootID   *string `json:"rootId"`
}

type bulkLoadResponse struct {
	Created int `json:"created"`
}

func (h *handler) bulkLoad(c *gin.Context) {
	if h.production {
		writeError(c, &forest.Error{Kind: forest.KindForbiddenInProduction, Msg: "bulk load is disabled in production"})
		return
	}

	var req []bulkEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries := make([]forest.BulkInput, 0, len(req))
	for _, e := range req {
		entries = append(entries, forest.BulkInput{
			ID:       e.ID,
			Label:    e.Label,
			ParentID: e.ParentID,
			RootID:   e.RootID,
		})
	}

	created, err := h.svc.BulkLoad(c.Request.Context(), tenantFromRequest(c), entries)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bulkLoadResponse{Created: created})
}

func (h *handler) deleteTenant(c *gin.Context) {
	if h.production {
		writeError(c, &forest.Error{Kind: forest.KindForbiddenInProduction, Msg: "tenant deletion is disabled in production"})
		return
	}

	if err := h.svc.DeleteTenant(c.Request.Context(), tenantFromRequest(c)); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
