package model

// CaptionRecord 一张图片的转译结果，键是去掉前缀的 base64 载荷
// 写入后不再修改，缓存命中时原样返回 Description
type CaptionRecord struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}
