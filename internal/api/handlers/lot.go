package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/jpark/internal/models"
)

// GetLot 查询完整场库（楼层、车位、入口）
func (h *Handler) GetLot(c *gin.Context) {
	lot, err := h.parkingService.GetLot(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lot})
}

// GetLotLocation 查询场库地理信息
func (h *Handler) GetLotLocation(c *gin.Context) {
	loc, err := h.parkingService.GetLotLocation(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": loc})
}

// ImportLot 导入室内地图生成的场库拓扑，整体替换现有数据
func (h *Handler) ImportLot(c *gin.Context) {
	var lot models.ParkingLot
	if err := c.ShouldBindJSON(&lot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.parkingService.ImportLot(c.Request.Context(), &lot); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
