package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/llm-gateway/internal/validation"
	"go.uber.org/zap"
)

// RulesHandler manages the validation rule registry at runtime.
type RulesHandler struct {
	engine  *validation.Engine
	catalog *validation.Catalog
	logger  *zap.Logger
}

// NewRulesHandler creates a new RulesHandler.
func NewRulesHandler(engine *validation.Engine, catalog *validation.Catalog, logger *zap.Logger) *RulesHandler {
	return &RulesHandler{
		engine:  engine,
		catalog: catalog,
		logger:  logger.Named("rules_handler"),
	}
}

// List processes GET /api/v1/rules requests.
func (h *RulesHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":    h.engine.RuleNames(),
		"available": h.catalog.Names(),
	})
}

// Add processes POST /api/v1/rules requests.
func (h *RulesHandler) Add(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	rule, err := h.catalog.Build(body.Name, h.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.AddRule(rule); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("rule enabled", zap.String("rule", body.Name))
	c.JSON(http.StatusOK, gin.H{"active": h.engine.RuleNames()})
}

// Remove processes DELETE /api/v1/rules/:name requests.
func (h *RulesHandler) Remove(c *gin.Context) {
	name := c.Param("name")

	if err := h.engine.RemoveRule(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("rule disabled", zap.String("rule", name))
	c.JSON(http.StatusOK, gin.H{"active": h.engine.RuleNames()})
}
