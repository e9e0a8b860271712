// Package memstore holds in-memory implementations of the storefront stores.
// They back the "memory" storage driver for local runs and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

type Products struct {
	mu    sync.RWMutex
	items map[string]*models.Product
}

func NewProducts(seed ...*models.Product) *Products {
	s := &Products{items: make(map[string]*models.Product)}
	for _, p := range seed {
		s.items[p.ID] = copyProduct(p)
	}
	return s
}

func (s *Products) Get(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("product %s not found", id)
	}
	return copyProduct(p), nil
}

func (s *Products) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	var matched []*models.Product
	for _, p := range s.items {
		if filter.Matches(p) {
			matched = append(matched, copyProduct(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, filter.Page, filter.PageSize), int64(len(matched)), nil
}

func (s *Products) Create(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; ok {
		return apperr.Newf(apperr.KindConflict, "product %s already exists", p.ID)
	}
	s.items[p.ID] = copyProduct(p)
	return nil
}

func (s *Products) Update(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return apperr.NotFound("product %s not found", p.ID)
	}
	s.items[p.ID] = copyProduct(p)
	return nil
}

func (s *Products) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return apperr.NotFound("product %s not found", id)
	}
	delete(s.items, id)
	return nil
}

func copyProduct(p *models.Product) *models.Product {
	c := *p
	c.Stock = make(map[models.Size]int, len(p.Stock))
	for k, v := range p.Stock {
		c.Stock[k] = v
	}
	c.Images = append([]string(nil), p.Images...)
	return &c
}

type Promos struct {
	mu    sync.RWMutex
	items map[string]*models.PromoCode
}

func NewPromos(seed ...*models.PromoCode) *Promos {
	s := &Promos{items: make(map[string]*models.PromoCode)}
	for _, p := range seed {
		c := copyPromo(p)
		c.Code = models.NormalizeCode(c.Code)
		s.items[p.ID] = c
	}
	return s
}

func (s *Promos) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	code = models.NormalizeCode(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.items {
		if p.Code == code {
			return copyPromo(p), nil
		}
	}
	return nil, apperr.NotFound("promo code %s not found", code)
}

func (s *Promos) Get(ctx context.Context, id string) (*models.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("promo code %s not found", id)
	}
	return copyPromo(p), nil
}

func (s *Promos) List(ctx context.Context) ([]*models.PromoCode, error) {
	s.mu.RLock()
	out := make([]*models.PromoCode, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, copyPromo(p))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Promos) Create(ctx context.Context, p *models.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(p); err != nil {
		return err
	}
	s.items[p.ID] = copyPromo(p)
	return nil
}

// Update replaces the admin-editable fields and keeps the stored counters.
func (s *Promos) Update(ctx context.Context, p *models.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[p.ID]
	if !ok {
		return apperr.NotFound("promo code %s not found", p.ID)
	}
	if err := s.checkUnique(p); err != nil {
		return err
	}
	next := copyPromo(p)
	next.UsedCount = cur.UsedCount
	next.UsageByUser = cur.UsageByUser
	next.CreatedAt = cur.CreatedAt
	s.items[p.ID] = next
	return nil
}

func (s *Promos) checkUnique(p *models.PromoCode) error {
	for id, other := range s.items {
		if id != p.ID && other.Code == p.Code {
			return apperr.Newf(apperr.KindConflict, "promo code %s already exists", p.Code)
		}
	}
	return nil
}

func (s *Promos) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return apperr.NotFound("promo code %s not found", id)
	}
	delete(s.items, id)
	return nil
}

func (s *Promos) IncrementUsage(ctx context.Context, codeID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[codeID]
	if !ok {
		return apperr.NotFound("promo code %s not found", codeID)
	}
	p.UsedCount++
	if userID != "" {
		if p.UsageByUser == nil {
			p.UsageByUser = map[string]int{}
		}
		p.UsageByUser[userID]++
	}
	return nil
}

func copyPromo(p *models.PromoCode) *models.PromoCode {
	c := *p
	c.UsageByUser = make(map[string]int, len(p.UsageByUser))
	for k, v := range p.UsageByUser {
		c.UsageByUser[k] = v
	}
	c.ProductIDs = append([]string(nil), p.ProductIDs...)
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

type Orders struct {
	mu    sync.RWMutex
	items map[string]*models.Order
}

func NewOrders() *Orders {
	return &Orders{items: make(map[string]*models.Order)}
}

func (s *Orders) Create(ctx context.Context, o *models.Order) error {
	if err := o.EncodeItems(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[o.Code]; ok {
		return apperr.Newf(apperr.KindConflict, "order %s already exists", o.Code)
	}
	c := *o
	c.Lines = append([]models.CartLine(nil), o.Lines...)
	s.items[o.Code] = &c
	return nil
}

func (s *Orders) GetByCode(ctx context.Context, code string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.items[code]
	if !ok {
		return nil, apperr.NotFound("order %s not found", code)
	}
	c := *o
	c.Lines = append([]models.CartLine(nil), o.Lines...)
	return &c, nil
}

func (s *Orders) ListByUser(ctx context.Context, userID string, pageNum, pageSize int) ([]*models.Order, int64, error) {
	s.mu.RLock()
	var matched []*models.Order
	for _, o := range s.items {
		if o.UserID == userID {
			c := *o
			matched = append(matched, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, pageNum, pageSize), int64(len(matched)), nil
}

// Carts stores serialized cart sessions.
type Carts struct {
	mu    sync.Mutex
	items map[string]cartEntry
	now   func() time.Time
}

type cartEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewCarts() *Carts {
	return &Carts{items: make(map[string]cartEntry), now: time.Now}
}

func (s *Carts) Load(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || (!e.expiresAt.IsZero() && s.now().After(e.expiresAt)) {
		delete(s.items, id)
		return nil, apperr.NotFound("cart %s not found", id)
	}
	return append([]byte(nil), e.data...), nil
}

func (s *Carts) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := cartEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.items[id] = e
	return nil
}

func (s *Carts) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

type AuditLog struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (s *AuditLog) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *log
	c.CreatedAt = time.Now()
	s.entries = append(s.entries, &c)
	return nil
}

func (s *AuditLog) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].EntityID != entityID {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

// Entries returns every entry in insertion order.
func (s *AuditLog) Entries() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AuditLog(nil), s.entries...)
}

type Notifications struct {
	mu    sync.Mutex
	items []*models.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (s *Notifications) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.items = append(s.items, &c)
	return nil
}

func (s *Notifications) ListNotifications(ctx context.Context, unreadOnly bool, limit int64) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for i := len(s.items) - 1; i >= 0; i-- {
		n := s.items[i]
		if unreadOnly && n.Read {
			continue
		}
		c := *n
		out = append(out, &c)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (s *Notifications) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return apperr.NotFound("notification %s not found", id)
}

func page[T any](items []T, pageNum, pageSize int) []T {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		return items
	}
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
