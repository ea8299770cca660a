package order

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrUnknownOrder = errors.New("unknown order")

// Manager 维护一个内存订单账本：校验约束、登记状态、执行状态迁移。
type Manager struct {
	book        *Book
	mu          sync.RWMutex
	constraints map[string]SymbolConstraints
	now         func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		book: NewBook(),
		now:  time.Now,
	}
}

// SetConstraints 设置各交易对的精度/名义限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

// Submit 校验并登记新订单，返回已确认（ACK）的订单。
func (m *Manager) Submit(req Request) (Order, error) {
	if err := req.Validate(); err != nil {
		return Order{}, err
	}
	price, qty := req.Price, req.Amount
	if req.Type == TypeLimit {
		m.mu.RLock()
		c, ok := m.constraints[req.Symbol]
		m.mu.RUnlock()
		if ok {
			price, qty = c.Round(price, qty)
			if err := c.Validate(price, qty); err != nil {
				return Order{}, err
			}
		}
	}
	now := m.now().UTC()
	o := Order{
		ID:        generateID(),
		ClientID:  req.ClientOrderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     price,
		Quantity:  qty,
		Filled:    decimal.Zero,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.book.Set(o)
	return m.transition(o.ID, StatusAck, nil)
}

// Fill 记录一笔成交，自动推进到 PARTIAL 或 FILLED。
func (m *Manager) Fill(id string, qty decimal.Decimal) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.book.Get(id)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if !qty.IsPositive() || qty.GreaterThan(o.Remaining()) {
		return Order{}, fmt.Errorf("fill qty %s exceeds remaining %s", qty, o.Remaining())
	}
	o.Filled = o.Filled.Add(qty)
	next := StatusPartial
	if o.Remaining().IsZero() {
		next = StatusFilled
	}
	if err := ValidateTransition(o.Status, next); err != nil {
		return Order{}, err
	}
	o.Status = next
	o.UpdatedAt = m.now().UTC()
	m.book.Set(o)
	return o, nil
}

// Cancel 撤销单个订单。
func (m *Manager) Cancel(id string) (Order, error) {
	return m.transition(id, StatusCanceled, nil)
}

// CancelAll 撤销交易对下所有未完结订单，返回被撤销的订单。
func (m *Manager) CancelAll(symbol string) ([]Order, error) {
	open := m.book.Open(symbol)
	out := make([]Order, 0, len(open))
	for _, o := range open {
		c, err := m.transition(o.ID, StatusCanceled, nil)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Reject 标记订单被拒绝并记录原因。
func (m *Manager) Reject(id string, cause error) (Order, error) {
	return m.transition(id, StatusRejected, cause)
}

// Get 返回订单当前视图。
func (m *Manager) Get(id string) (Order, bool) {
	return m.book.Get(id)
}

// Open 返回未完结订单。
func (m *Manager) Open(symbol string) []Order {
	return m.book.Open(symbol)
}

func (m *Manager) transition(id string, st Status, cause error) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.book.Get(id)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if err := ValidateTransition(o.Status, st); err != nil {
		return Order{}, err
	}
	o.Status = st
	o.UpdatedAt = m.now().UTC()
	if cause != nil {
		o.LastError = cause.Error()
	}
	m.book.Set(o)
	return o, nil
}

func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
