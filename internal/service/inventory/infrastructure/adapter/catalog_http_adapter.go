// internal/service/inventory/infrastructure/adapter/catalog_http_adapter.go
package adapter

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"stockpile/internal/pkg/httpclient"
	"stockpile/internal/service/inventory/port"
)

const productDetailPath = "/api/products/detail"

// CatalogHTTPAdapter 是 port.ProductCatalog 接口的HTTP实现。
type CatalogHTTPAdapter struct {
	client      *httpclient.Client
	serviceName string
}

// NewCatalogHTTPAdapter 创建一个新的商品目录服务适配器实例。
func NewCatalogHTTPAdapter(client *httpclient.Client, serviceName string) *CatalogHTTPAdapter {
	return &CatalogHTTPAdapter{client: client, serviceName: serviceName}
}

// FetchProduct 从商品服务拉取商品摘要，未知商品自动建档时提供初始库存。
func (a *CatalogHTTPAdapter) FetchProduct(ctx context.Context, productID string) (*port.CatalogProduct, error) {
	params := url.Values{}
	params.Set("productId", productID)

	var product port.CatalogProduct
	if err := a.client.GetJSON(ctx, a.serviceName, productDetailPath, params, &product); err != nil {
		return nil, errors.Wrapf(err, "fetch product %s from catalog", productID)
	}
	if product.ProductID == "" {
		product.ProductID = productID
	}
	return &product, nil
}
