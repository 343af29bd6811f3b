package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/AnTengye/auctionhub/backend/store"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type PropertyHandler struct {
	store store.PropertyStore
}

func NewPropertyHandler(propertyStore store.PropertyStore) *PropertyHandler {
	return &PropertyHandler{store: propertyStore}
}

// List returns the most recently imported properties
func (h *PropertyHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxListLimit)
	}

	properties, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list properties", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list properties"})
		return
	}
	total, err := h.store.Count(c.Request.Context())
	if err != nil {
		total = len(properties)
	}

	c.JSON(http.StatusOK, gin.H{"properties": properties, "total": total})
}

// Get returns a single property
func (h *PropertyHandler) Get(c *gin.Context) {
	property, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get property", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property"})
		return
	}

	c.JSON(http.StatusOK, property)
}

// Delete withdraws a property listing
func (h *PropertyHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	err := h.store.Delete(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "failed to delete property", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete property"})
		return
	}

	logger.Info(c.Request.Context(), "property deleted", "id", id)
	c.JSON(http.StatusOK, gin.H{"message": "Property deleted"})
}
