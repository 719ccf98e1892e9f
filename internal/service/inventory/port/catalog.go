// internal/service/inventory/port/catalog.go
package port

import "context"

// CatalogProduct 是商品服务视角下的商品摘要。
type CatalogProduct struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stockQuantity"`
}

// ProductCatalog 是商品目录服务的出站端口。
// 只在为未知商品自动建档时读取初始库存，本服务永远不写商品数据。
type ProductCatalog interface {
	FetchProduct(ctx context.Context, productID string) (*CatalogProduct, error)
}
