package domain

import (
	"context"
	"net/url"
)

// MerchantAPI is the outbound payments-API capability. Calls return the
// decoded JSON body (map, slice, scalar, or the raw text body when the
// response is not JSON) on 2xx, or a classified error otherwise. Per-call
// timeouts are set through the context deadline.
type MerchantAPI interface {
	Get(ctx context.Context, path, credential string, query url.Values) (any, error)
	Post(ctx context.Context, path, credential string, body any) (any, error)
}
