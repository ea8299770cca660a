package order

import (
	"sort"
	"sync"
)

// Book 记录订单和状态，支持按交易对查询。
type Book struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewBook() *Book {
	return &Book{orders: make(map[string]Order)}
}

func (b *Book) Set(o Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
}

func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Open 返回指定交易对的未完结订单，symbol 为空时返回全部；按创建时间排序。
func (b *Book) Open(symbol string) []Order {
	b.mu.RLock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		if !IsOpen(o.Status) {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		res = append(res, o)
	}
	b.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}

// List 返回全部订单（拷贝）。
func (b *Book) List() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o)
	}
	return res
}
