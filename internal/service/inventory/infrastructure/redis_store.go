package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nexus-commerce/internal/pkg/redis"
	"nexus-commerce/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	adjustScriptName = "inventory_adjust"
	createScriptName = "inventory_create"
)

// Lua 脚本在 Redis 内原子执行，检查与修改之间不会插入其他命令。
//
// KEYS[1]: 商品 hash，例如 inventory:product:{sku-1}
// ARGV[1]: 带符号的变化量
// ARGV[2]: 更新时间
// 返回值: >=0 为新数量；-1 商品不存在；-2 库存不足
const adjustScript = `
if redis.call('exists', KEYS[1]) == 0 then
    return -1
end
local qty = tonumber(redis.call('hget', KEYS[1], 'quantity'))
local remaining = qty + tonumber(ARGV[1])
if remaining < 0 then
    return -2
end
local status = 'OUT_OF_STOCK'
if remaining > 0 then
    status = 'AVAILABLE'
end
redis.call('hset', KEYS[1], 'quantity', remaining, 'status', status, 'updated_at', ARGV[2])
return remaining
`

// KEYS[1]: 商品 hash；ARGV: name, price, quantity, status, created_at
// 返回 1 表示创建成功，0 表示已存在
const createScript = `
if redis.call('exists', KEYS[1]) == 1 then
    return 0
end
redis.call('hset', KEYS[1], 'name', ARGV[1], 'price', ARGV[2], 'quantity', ARGV[3], 'status', ARGV[4], 'created_at', ARGV[5], 'updated_at', ARGV[5])
return 1
`

// RedisStockStore 用 Redis hash 保存库存，适合高并发扣减场景。
type RedisStockStore struct {
	redisClient *redis.Client
}

// NewRedisStockStore 创建实例并预加载 Lua 脚本。
func NewRedisStockStore(ctx context.Context, redisClient *redis.Client) (*RedisStockStore, error) {
	if err := redisClient.LoadScriptFromContent(ctx, adjustScriptName, adjustScript); err != nil {
		return nil, errors.Wrap(err, "load inventory adjust script")
	}
	if err := redisClient.LoadScriptFromContent(ctx, createScriptName, createScript); err != nil {
		return nil, errors.Wrap(err, "load inventory create script")
	}
	return &RedisStockStore{redisClient: redisClient}, nil
}

func productKey(productID string) string {
	return fmt.Sprintf("inventory:product:{%s}", productID)
}

func (s *RedisStockStore) Create(ctx context.Context, p *domain.Product) error {
	result, err := s.redisClient.RunScript(ctx, createScriptName, []string{productKey(p.ID)},
		p.Name, p.Price.String(), p.Quantity, string(domain.StatusFor(p.Quantity)), p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(err, "run create script")
	}
	if code, _ := result.(int64); code == 0 {
		return errors.Wrapf(domain.ErrProductExists, "product %s", p.ID)
	}
	return nil
}

func (s *RedisStockStore) Get(ctx context.Context, productID string) (*domain.Product, error) {
	fields, err := s.redisClient.GetClient().HGetAll(ctx, productKey(productID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "hgetall product")
	}
	if len(fields) == 0 {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %s", productID)
	}
	return productFromHash(productID, fields)
}

func (s *RedisStockStore) Adjust(ctx context.Context, adj domain.Adjustment) (*domain.Product, error) {
	if err := adj.Validate(); err != nil {
		return nil, err
	}

	key := productKey(adj.ProductID)
	result, err := s.redisClient.RunScript(ctx, adjustScriptName, []string{key},
		adj.Signed(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.Wrap(err, "run adjust script")
	}
	code, ok := result.(int64)
	if !ok {
		return nil, errors.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch {
	case code == -1:
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %s", adj.ProductID)
	case code == -2:
		return nil, errors.Wrapf(domain.ErrInsufficientStock, "product %s cannot %s by %d", adj.ProductID, adj.Direction(), adj.Delta)
	case code < 0:
		return nil, errors.Errorf("unknown result code from adjust script: %d", code)
	}

	p, err := s.Get(ctx, adj.ProductID)
	if err != nil {
		return nil, err
	}
	// hash 可能已被后续调整修改，以脚本返回值为准
	p.Quantity = int(code)
	p.Status = domain.StatusFor(p.Quantity)
	return p, nil
}

func productFromHash(productID string, fields map[string]string) (*domain.Product, error) {
	qty, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return nil, errors.Wrapf(err, "parse quantity of %s", productID)
	}
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, errors.Wrapf(err, "parse price of %s", productID)
	}
	p := &domain.Product{
		ID:       productID,
		Name:     fields["name"],
		Price:    price,
		Quantity: qty,
		Status:   domain.Status(fields["status"]),
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return p, nil
}
