package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/jpark/internal/repository"
)

// ListReservations 查询用户的预约记录
func (h *Handler) ListReservations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"userId": gin.H{"msg": "Missing userId"}})
		return
	}

	reservations, err := h.reservationRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reservations})
}

// GetReservation 查询单条预约
func (h *Handler) GetReservation(c *gin.Context) {
	rv, err := h.reservationRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"reservationId": gin.H{"msg": "Reservation not found"}})
			return
		}
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rv})
}
