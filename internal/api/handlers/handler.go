package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/jpark/internal/errs"
	"github.com/langchou/jpark/internal/repository"
	"github.com/langchou/jpark/internal/service"
	"github.com/langchou/jpark/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger          *zap.Logger
	parkingService  *service.ParkingService
	reservationRepo *repository.ReservationRepository
	settingRepo     *repository.SettingRepository
	wsHub           *ws.Hub
	upgrader        websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	parkingService *service.ParkingService,
	reservationRepo *repository.ReservationRepository,
	settingRepo *repository.SettingRepository,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:          logger,
		parkingService:  parkingService,
		reservationRepo: reservationRepo,
		settingRepo:     settingRepo,
		wsHub:           wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 场库
		api.GET("/parking-lot", h.GetLot)
		api.GET("/parking-lot/location", h.GetLotLocation)
		api.PUT("/parking-lot", h.ImportLot) // 室内地图导入落地

		// 车位
		api.GET("/parking-spaces", h.GetSpace)
		api.GET("/parking-spaces/nearest-to-entrance", h.NearestToEntrance)
		api.GET("/parking-spaces/accessible", h.FirstAccessibleEmpty)
		api.POST("/parking-spaces/reserve", h.Reserve)
		api.POST("/parking-spaces/unlock", h.Unlock)
		api.POST("/parking-spaces/cancel", h.Cancel)
		api.POST("/parking-spaces/park", h.Park)
		api.POST("/parking-spaces/leave", h.Leave)
		api.POST("/parking-spaces/clear", h.Clear)

		// 预约
		api.GET("/reservations", h.ListReservations)
		api.GET("/reservations/:id", h.GetReservation)

		// 设置
		api.GET("/settings", h.GetSetting)
		api.PUT("/settings/operating-hour", h.UpdateOperatingHours)
		api.PUT("/settings/reservation", h.UpdateReservationEnable)
		api.PUT("/settings/reservation-fee", h.UpdateReservationFee)
		api.PUT("/settings/reservation-duration", h.UpdateMaxReservationDuration)
	}

	// WebSocket 订阅
	r.GET("/ws/parking-spaces-changes", h.SubscribeSpaceChanges)
	r.GET("/ws/parking-spaces-statistic", h.SubscribeStatistic)
	r.GET("/ws/gateway", h.HandleGateway)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// renderError 领域错误转 HTTP 响应，响应体为 {field: {"msg": …}}
func (h *Handler) renderError(c *gin.Context, err error) {
	e := errs.AsError(err)

	status := http.StatusBadRequest
	switch e.Kind {
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindUnauthorized:
		status = http.StatusForbidden
	case errs.KindInternal:
		status = http.StatusInternalServerError
		h.logger.Error("Request failed", zap.Error(err))
	}

	c.JSON(status, gin.H{e.Field: gin.H{"msg": e.Msg}})
}

// subscribe 把连接升级为 WebSocket 并挂到指定主题
func (h *Handler) subscribe(c *gin.Context, topic string, onMessage func([]byte)) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, topic, conn, onMessage)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// SubscribeSpaceChanges 车位变更流订阅
func (h *Handler) SubscribeSpaceChanges(c *gin.Context) {
	h.subscribe(c, ws.TopicSpaceChanges, nil)
}

// SubscribeStatistic 统计流订阅，注册后立即收到当前统计
func (h *Handler) SubscribeStatistic(c *gin.Context) {
	h.subscribe(c, ws.TopicStatistic, nil)
}

// HandleGateway 传感器网关双工通道：入站 park/leave，出站执行指令
func (h *Handler) HandleGateway(c *gin.Context) {
	h.subscribe(c, ws.TopicGateway, h.parkingService.HandleGatewayMessage)
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"changes_clients":    h.wsHub.ClientCount(ws.TopicSpaceChanges),
		"statistic_clients":  h.wsHub.ClientCount(ws.TopicStatistic),
		"gateway_clients":    h.wsHub.ClientCount(ws.TopicGateway),
	})
}
