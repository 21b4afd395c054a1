package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type spaceRequest struct {
	ParkingSpaceID int64 `json:"parkingSpaceId" binding:"required"`
}

type userSpaceRequest struct {
	ParkingSpaceID int64  `json:"parkingSpaceId" binding:"required"`
	UserID         string `json:"userId" binding:"required"`
}

type reserveRequest struct {
	ParkingSpaceID int64  `json:"parkingSpaceId" binding:"required"`
	UserID         string `json:"userId" binding:"required"`
	Duration       int    `json:"duration" binding:"required,min=1"`
}

// GetSpace 查询单个车位
func (h *Handler) GetSpace(c *gin.Context) {
	raw := c.Query("parkingSpaceId")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"parkingSpaceId": gin.H{"msg": "Missing parkingSpaceId"}})
		return
	}
	spaceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"parkingSpaceId": gin.H{"msg": "Invalid parkingSpaceId"}})
		return
	}

	detail, err := h.parkingService.GetSpace(c.Request.Context(), spaceID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// NearestToEntrance 查询距入口最近的空位，无空位返回空对象
func (h *Handler) NearestToEntrance(c *gin.Context) {
	space, err := h.parkingService.NearestToEntrance(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	if space == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": space})
}

// FirstAccessibleEmpty 查询第一个空闲无障碍车位
func (h *Handler) FirstAccessibleEmpty(c *gin.Context) {
	space, err := h.parkingService.FirstAccessibleEmpty(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	if space == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": space})
}

// Reserve 预约车位
func (h *Handler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	rv, err := h.parkingService.Reserve(c.Request.Context(), req.ParkingSpaceID, req.UserID, req.Duration, time.Now())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rv})
}

// Unlock 解锁已预约车位
func (h *Handler) Unlock(c *gin.Context) {
	var req userSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.parkingService.Unlock(c.Request.Context(), req.ParkingSpaceID, req.UserID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Cancel 取消预约
func (h *Handler) Cancel(c *gin.Context) {
	var req userSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.parkingService.Cancel(c.Request.Context(), req.ParkingSpaceID, req.UserID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Park 车辆驶入（通常由网关上报，此接口供调试与补录）
func (h *Handler) Park(c *gin.Context) {
	var req spaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.parkingService.Park(c.Request.Context(), req.ParkingSpaceID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Leave 车辆驶离
func (h *Handler) Leave(c *gin.Context) {
	var req spaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.parkingService.Leave(c.Request.Context(), req.ParkingSpaceID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Clear 管理员清除预约
func (h *Handler) Clear(c *gin.Context) {
	var req spaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.parkingService.Clear(c.Request.Context(), req.ParkingSpaceID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
