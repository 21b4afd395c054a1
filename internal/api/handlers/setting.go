package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/jpark/internal/models"
)

type operatingHourRequest struct {
	OperatingHour []models.DaySchedule `json:"operatingHour" binding:"required,len=7"`
}

type reservationEnableRequest struct {
	IsReservationEnable *bool `json:"isReservationEnable" binding:"required"`
}

type reservationFeeRequest struct {
	ReservationFee *float64 `json:"reservationFee" binding:"required,min=0"`
}

type reservationDurationRequest struct {
	MaxReservationDuration *int `json:"maxReservationDuration" binding:"required,min=1,max=24"`
}

// GetSetting 查询运营设置
func (h *Handler) GetSetting(c *gin.Context) {
	setting, err := h.settingRepo.Get(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": setting})
}

// UpdateOperatingHours 更新营业时间，七天一组整体提交
func (h *Handler) UpdateOperatingHours(c *gin.Context) {
	var req operatingHourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"operatingHour": gin.H{"msg": "Operating hour must have 7 entries"}})
		return
	}

	var schedule [7]models.DaySchedule
	for i, day := range req.OperatingHour {
		if err := day.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"operatingHour": gin.H{"msg": err.Error()}})
			return
		}
		schedule[i] = day
	}

	if err := h.settingRepo.UpdateOperatingHours(c.Request.Context(), schedule); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// UpdateReservationEnable 更新预约开关
func (h *Handler) UpdateReservationEnable(c *gin.Context) {
	var req reservationEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"isReservationEnable": gin.H{"msg": "Invalid value"}})
		return
	}

	if err := h.settingRepo.UpdateReservationEnable(c.Request.Context(), *req.IsReservationEnable); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// UpdateReservationFee 更新预约费用
func (h *Handler) UpdateReservationFee(c *gin.Context) {
	var req reservationFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reservationFee": gin.H{"msg": "Reservation fee must be a non-negative number"}})
		return
	}

	if err := h.settingRepo.UpdateReservationFee(c.Request.Context(), *req.ReservationFee); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// UpdateMaxReservationDuration 更新预约时长上限，1-24 小时
func (h *Handler) UpdateMaxReservationDuration(c *gin.Context) {
	var req reservationDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"maxReservationDuration": gin.H{"msg": "Duration must be between 1 and 24 hours"}})
		return
	}

	if err := h.settingRepo.UpdateMaxReservationDuration(c.Request.Context(), *req.MaxReservationDuration); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
