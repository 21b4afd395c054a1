// Package realtime 把领域变更接到 WebSocket 广播主题上
package realtime

import (
	"github.com/langchou/jpark/internal/models"
	"github.com/langchou/jpark/pkg/ws"
)

// Notifier 基于 Hub 的变更扇出实现
type Notifier struct {
	hub *ws.Hub
}

// NewNotifier 创建扇出器
func NewNotifier(hub *ws.Hub) *Notifier {
	return &Notifier{hub: hub}
}

// SpaceChanged 广播转换后的车位快照
func (n *Notifier) SpaceChanged(space *models.ParkingSpace) {
	n.hub.BroadcastMessage(ws.TopicSpaceChanges, ws.MsgTypeSpaceUpdate, space)
}

// StatisticChanged 广播重算后的全场统计
func (n *Notifier) StatisticChanged(stat models.Statistic) {
	n.hub.BroadcastMessage(ws.TopicStatistic, ws.MsgTypeStatistic, stat)
}

// GatewayCommand 向网关下发执行指令（落锁/抬锁）
func (n *Notifier) GatewayCommand(event string, spaceID int64) {
	n.hub.BroadcastMessage(ws.TopicGateway, ws.MsgTypeCommand, map[string]any{
		"event":          event,
		"parkingSpaceId": spaceID,
	})
}
