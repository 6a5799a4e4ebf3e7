package public

import "github.com/tienda-next/internal/provider"

// Handler 买家端接口处理器入口
// 说明：覆盖游客与登录用户的下单、支付与查询接口。
type Handler struct {
	*provider.Container
}

// New 创建买家端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
