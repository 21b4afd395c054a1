package models

// Location 经纬度坐标
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position 楼层平面图上的像素坐标
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Corners 停车场四角经纬度（用于地图贴图定位）
type Corners struct {
	TopLeft     Location `json:"topLeft"`
	TopRight    Location `json:"topRight"`
	BottomLeft  Location `json:"bottomLeft"`
	BottomRight Location `json:"bottomRight"`
}

// Dimension 停车场外接矩形尺寸（米）
type Dimension struct {
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
}

// FloorMap 楼层平面图引用
type FloorMap struct {
	ID    string  `json:"id"`
	URL   string  `json:"url"`
	Scale float64 `json:"scale"` // 像素/米
}

// Entrance 楼层入口标记（用于最近车位查询）
type Entrance struct {
	ID       int64    `json:"id"`
	FloorID  int64    `json:"floorId"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Pos      Position `json:"pos"`
	Coord    Location `json:"coordinate"`
}

// Floor 停车场楼层，导入后除嵌套车位外不再变更
type Floor struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Level         int            `json:"level"`
	LevelHeight   float64        `json:"levelHeight"`
	Map           FloorMap       `json:"map"`
	ParkingSpaces []ParkingSpace `json:"parkingSpaces"`
	Entrances     []Entrance     `json:"entrances"`
}

// ParkingLot 聚合根，整个部署假定只有一个在管停车场
type ParkingLot struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Location   Location  `json:"location"`
	Corners    Corners   `json:"corners"`
	Rotation   float64   `json:"rotation"`
	PictureURL string    `json:"pictureUrl,omitempty"`
	Dimension  Dimension `json:"dimension"`
	Floors     []Floor   `json:"floors"`
}

// LotLocation 停车场地理信息投影（corners/location/dimension/rotation）
type LotLocation struct {
	Location  Location  `json:"location"`
	Corners   Corners   `json:"corners"`
	Rotation  float64   `json:"rotation"`
	Dimension Dimension `json:"dimension"`
}
