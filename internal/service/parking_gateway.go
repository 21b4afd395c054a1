package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// GatewayEvent 传感器网关上报的事件
type GatewayEvent struct {
	Event          string `json:"event"` // park / leave
	ParkingSpaceID int64  `json:"parkingSpaceId"`
}

// HandleGatewayMessage 处理网关入站消息
// 事件走与用户请求相同的状态机守卫，成功后经两个广播主题对外重放
func (s *ParkingService) HandleGatewayMessage(data []byte) {
	var ev GatewayEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("Invalid gateway message", zap.ByteString("data", data), zap.Error(err))
		return
	}

	ctx := context.Background()
	var err error
	switch ev.Event {
	case "park":
		err = s.Park(ctx, ev.ParkingSpaceID)
	case "leave":
		err = s.Leave(ctx, ev.ParkingSpaceID)
	default:
		s.logger.Warn("Unknown gateway event", zap.String("event", ev.Event))
		return
	}

	if err != nil {
		s.logger.Warn("Gateway event rejected",
			zap.String("event", ev.Event),
			zap.Int64("space_id", ev.ParkingSpaceID),
			zap.Error(err))
	}
}
