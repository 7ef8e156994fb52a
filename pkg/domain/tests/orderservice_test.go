package tests

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"storefront/pkg/domain/model"
	"storefront/pkg/domain/service"
	"storefront/pkg/domain/validation"
)

const operatorAddress = "encomendas@clube.pt"

type fixture struct {
	orders     service.OrderService
	store      *memoryStore
	sender     *mockSender
	dispatcher *mockEventDispatcher
}

func setup(t *testing.T, pricing service.PricingPolicy) *fixture {
	store := newMemoryStore()
	products := &mockProductRepository{store: make(map[uuid.UUID]model.Product)}
	for _, product := range service.DefaultCatalog() {
		require.NoError(t, products.Store(context.Background(), &product))
	}
	sender := &mockSender{}
	dispatcher := &mockEventDispatcher{}

	notifications := service.NewNotificationService(&memoryNotificationRepository{store}, sender, dispatcher, operatorAddress, 3)
	orderService := service.NewOrderService(service.OrderServiceDeps{
		UnitOfWork:    store,
		Products:      products,
		Validator:     newValidator(t),
		Notifications: notifications,
		Dispatcher:    dispatcher,
		Pricing:       pricing,
		NotifyTimeout: time.Second,
	})

	return &fixture{orders: orderService, store: store, sender: sender, dispatcher: dispatcher}
}

func TestPlaceOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})

		order, err := f.orders.PlaceOrder(context.Background(), validOrder())

		require.NoError(t, err)
		require.NotNil(t, order)
		require.NotNil(t, order.Buyer)
		assert.Equal(t, order.Buyer.ID, order.BuyerID)
		assert.Equal(t, "joao.silva@example.com", order.Buyer.Email)
		assert.Equal(t, "+351912345678", *order.Buyer.Phone)
		assert.Equal(t, model.Guest, order.Buyer.Type)

		require.Len(t, order.Items, 1)
		item := order.Items[0]
		assert.Equal(t, order.ID, item.OrderID)
		assert.Equal(t, service.DefaultCatalog()[0].ID, item.ProductID)
		require.NotNil(t, item.Product)
		assert.Equal(t, "M", item.Size)
		assert.Equal(t, 1, item.Quantity)
		assert.False(t, item.IsPersonalized())
		assertPrice(t, "30", item.UnitPrice)

		assert.Len(t, f.store.buyers, 1)
		assert.Contains(t, f.store.orders, order.ID)

		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, operatorAddress, f.sender.sent[0].recipient)
		assert.Equal(t, "Encomenda #"+order.ID.String(), f.sender.sent[0].subject)

		notification := f.store.notificationFor(order.ID)
		require.NotNil(t, notification)
		assert.Equal(t, model.Sent, notification.Status)
		assert.Equal(t, 1, notification.Attempts)
		assert.NotNil(t, notification.SentAt)

		require.Len(t, f.dispatcher.events, 3)
		_, ok := f.dispatcher.events[0].(model.BuyerRegistered)
		assert.True(t, ok)
		placed, ok := f.dispatcher.events[1].(model.OrderPlaced)
		require.True(t, ok)
		assert.Equal(t, order.ID, placed.OrderID)
		_, ok = f.dispatcher.events[2].(model.NotificationSent)
		assert.True(t, ok)
	})

	t.Run("Buyer type discount is applied", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})

		member, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "buyerType", "MEMBER"))
		require.NoError(t, err)
		assertPrice(t, "22.5", member.Items[0].UnitPrice)

		athlete, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "buyerType", "ATHLETE"))
		require.NoError(t, err)
		assertPrice(t, "15", athlete.Items[0].UnitPrice)
	})

	t.Run("Personalization is stored and charged when configured", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{ChargePersonalization: true})
		raw := with(with(validOrder(), "productPersonalizedName", "SILVA"), "productPersonalizedNumber", float64(0))

		order, err := f.orders.PlaceOrder(context.Background(), raw)

		require.NoError(t, err)
		item := order.Items[0]
		require.True(t, item.IsPersonalized())
		assert.Equal(t, "SILVA", *item.Personalization.Name)
		assert.Equal(t, 0, *item.Personalization.Number)
		assertPrice(t, "35", item.UnitPrice)
	})

	t.Run("Returning buyer with same contact is reused", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		first, err := f.orders.PlaceOrder(context.Background(), validOrder())
		require.NoError(t, err)
		f.dispatcher.Reset()

		second, err := f.orders.PlaceOrder(context.Background(), validOrder())

		require.NoError(t, err)
		assert.Equal(t, first.BuyerID, second.BuyerID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Len(t, f.store.buyers, 1)
		assert.Len(t, f.store.orders, 2)
		for _, event := range f.dispatcher.events {
			_, registered := event.(model.BuyerRegistered)
			_, updated := event.(model.BuyerContactUpdated)
			assert.False(t, registered || updated)
		}
	})

	t.Run("Returning buyer with new phone and type is updated in place", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		first, err := f.orders.PlaceOrder(context.Background(), validOrder())
		require.NoError(t, err)
		f.dispatcher.Reset()

		raw := with(with(validOrder(), "buyerMobilePhone", "+351 936 543 210"), "buyerType", "MEMBER")
		second, err := f.orders.PlaceOrder(context.Background(), raw)

		require.NoError(t, err)
		assert.Equal(t, first.BuyerID, second.BuyerID)
		assert.Equal(t, "+351936543210", *second.Buyer.Phone)
		assert.Equal(t, model.Member, second.Buyer.Type)
		assert.Len(t, f.store.buyers, 1)
		require.NotEmpty(t, f.dispatcher.events)
		_, ok := f.dispatcher.events[0].(model.BuyerContactUpdated)
		assert.True(t, ok)
	})

	t.Run("Dropping the phone clears it", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		_, err := f.orders.PlaceOrder(context.Background(), validOrder())
		require.NoError(t, err)

		order, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "buyerMobilePhone", ""))

		require.NoError(t, err)
		assert.Nil(t, order.Buyer.Phone)
	})

	t.Run("Identity differing only by case is a new buyer", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		first, err := f.orders.PlaceOrder(context.Background(), validOrder())
		require.NoError(t, err)

		second, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "buyerEmail", "Joao.Silva@example.com"))

		require.NoError(t, err)
		assert.NotEqual(t, first.BuyerID, second.BuyerID)
		assert.Len(t, f.store.buyers, 2)
	})

	t.Run("Fail on invalid input without side effects", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})

		order, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "buyerVatId", "123456788"))

		assert.Nil(t, order)
		assert.Contains(t, validationFields(t, err), "buyerVatId")
		assert.Empty(t, f.store.buyers)
		assert.Empty(t, f.store.orders)
		assert.Empty(t, f.sender.sent)
		assert.Empty(t, f.dispatcher.events)
	})

	t.Run("Fail on unknown product", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})

		_, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "productId", uuid.NewString()))

		assert.Contains(t, validationFields(t, err), "productId")
		assert.Empty(t, f.store.orders)
	})

	t.Run("Fail on size the product does not have", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})

		_, err := f.orders.PlaceOrder(context.Background(), with(validOrder(), "productSize", "2XL"))

		assert.Contains(t, validationFields(t, err), "productSize")
		assert.Empty(t, f.store.orders)
	})

	t.Run("Fail on personalizing a plain product", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		raw := with(with(validOrder(), "productId", service.DefaultCatalog()[2].ID.String()), "productPersonalizedNumber", float64(10))

		_, err := f.orders.PlaceOrder(context.Background(), raw)

		fields := validationFields(t, err)
		assert.Contains(t, fields, "productPersonalizedNumber")
		assert.NotContains(t, fields, "productPersonalizedName")
		assert.Empty(t, f.store.orders)
	})

	t.Run("Field and product problems are reported together", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		raw := with(with(validOrder(), "buyerFirstName", "J"), "productSize", "XXXL")

		_, err := f.orders.PlaceOrder(context.Background(), raw)

		fields := validationFields(t, err)
		assert.Contains(t, fields, "buyerFirstName")
		assert.Equal(t, []string{"Este tamanho não está disponível para o produto selecionado."}, fields["productSize"])
		assert.Empty(t, f.store.orders)
	})

	t.Run("Unknown product is reported with field problems", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		raw := with(with(validOrder(), "buyerVatId", "123456788"), "productId", uuid.NewString())

		_, err := f.orders.PlaceOrder(context.Background(), raw)

		fields := validationFields(t, err)
		assert.Contains(t, fields, "buyerVatId")
		assert.Equal(t, []string{"O produto selecionado não existe."}, fields["productId"])
	})

	t.Run("Email failure does not fail the order", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		f.sender.err = errors.New("sendgrid is down")

		order, err := f.orders.PlaceOrder(context.Background(), validOrder())

		require.NoError(t, err)
		assert.Contains(t, f.store.orders, order.ID)
		notification := f.store.notificationFor(order.ID)
		require.NotNil(t, notification)
		assert.Equal(t, model.Failed, notification.Status)
		assert.Equal(t, 1, notification.Attempts)
		assert.Equal(t, "sendgrid is down", notification.FailureReason)

		last := f.dispatcher.events[len(f.dispatcher.events)-1]
		_, ok := last.(model.NotificationFailed)
		assert.True(t, ok)
	})

	t.Run("Email is delivered even if the request context is cancelled", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		ctx, cancel := context.WithCancel(context.Background())
		f.sender.onSend = cancel

		order, err := f.orders.PlaceOrder(ctx, validOrder())

		require.NoError(t, err)
		assert.Equal(t, model.Sent, f.store.notificationFor(order.ID).Status)
	})

	t.Run("Fail on persistence error rolls back everything", func(t *testing.T) {
		f := setup(t, service.PricingPolicy{})
		f.store.commitErr = errors.New("connection reset")

		order, err := f.orders.PlaceOrder(context.Background(), validOrder())

		assert.Nil(t, order)
		require.Error(t, err)
		var verr *validation.Error
		assert.False(t, errors.As(err, &verr))
		assert.Empty(t, f.store.buyers)
		assert.Empty(t, f.store.orders)
		assert.Empty(t, f.store.notifications)
		assert.Empty(t, f.sender.sent)
		assert.Empty(t, f.dispatcher.events)
	})
}

// The memory store serializes transactions, so this covers the service flow only. Convergence under
// real concurrency comes from the uq_buyers_identity key and is covered in the mysql package.
func TestPlaceOrderConcurrentFirstOrders(t *testing.T) {
	f := setup(t, service.PricingPolicy{})
	const submissions = 10

	var g errgroup.Group
	for i := 0; i < submissions; i++ {
		g.Go(func() error {
			_, err := f.orders.PlaceOrder(context.Background(), validOrder())
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, f.store.buyers, 1)
	assert.Len(t, f.store.orders, submissions)
	registered := 0
	for _, event := range f.dispatcher.events {
		if _, ok := event.(model.BuyerRegistered); ok {
			registered++
		}
	}
	assert.Equal(t, 1, registered)
}

// memoryStore is an in-memory UnitOfWork. Transactions are serialized and roll back by restoring a snapshot.
type memoryStore struct {
	txMu          sync.Mutex
	mu            sync.Mutex
	buyers        map[model.BuyerIdentity]model.Buyer
	orders        map[uuid.UUID]model.Order
	notifications map[uuid.UUID]model.Notification
	commitErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		buyers:        make(map[model.BuyerIdentity]model.Buyer),
		orders:        make(map[uuid.UUID]model.Order),
		notifications: make(map[uuid.UUID]model.Notification),
	}
}

var _ model.UnitOfWork = &memoryStore{}

func (s *memoryStore) Execute(ctx context.Context, fn func(provider model.RepositoryProvider) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	buyers, orders, notifications := cloneMap(s.buyers), cloneMap(s.orders), cloneMap(s.notifications)
	s.mu.Unlock()

	err := fn(s)
	if err == nil {
		err = s.commitErr
	}
	if err != nil {
		s.mu.Lock()
		s.buyers, s.orders, s.notifications = buyers, orders, notifications
		s.mu.Unlock()
	}
	return err
}

func (s *memoryStore) BuyerRepository() model.BuyerRepository {
	return &memoryBuyerRepository{s}
}

func (s *memoryStore) OrderRepository() model.OrderRepository {
	return &memoryOrderRepository{s}
}

func (s *memoryStore) NotificationRepository() model.NotificationRepository {
	return &memoryNotificationRepository{s}
}

func (s *memoryStore) notificationFor(orderID uuid.UUID) *model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.OrderID == orderID {
			return &n
		}
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	clone := make(map[K]V, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

type memoryBuyerRepository struct {
	store *memoryStore
}

func (m *memoryBuyerRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (m *memoryBuyerRepository) GetOrUpsert(_ context.Context, identity model.BuyerIdentity, phone *string, buyerType model.BuyerType) (*model.Buyer, model.UpsertResult, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	now := time.Now().UTC()
	buyer, ok := m.store.buyers[identity]
	if !ok {
		id, _ := m.NextID()
		buyer = model.Buyer{ID: id, BuyerIdentity: identity, Phone: phone, Type: buyerType, CreatedAt: now, UpdatedAt: now}
		m.store.buyers[identity] = buyer
		return &buyer, model.Created, nil
	}
	if equalPhone(buyer.Phone, phone) && buyer.Type == buyerType {
		return &buyer, model.Unchanged, nil
	}
	buyer.Phone, buyer.Type, buyer.UpdatedAt = phone, buyerType, now
	m.store.buyers[identity] = buyer
	return &buyer, model.Updated, nil
}

func equalPhone(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type memoryOrderRepository struct {
	store *memoryStore
}

func (m *memoryOrderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (m *memoryOrderRepository) Create(_ context.Context, order *model.Order) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, exists := m.store.orders[order.ID]; exists {
		return errors.New("order with this ID already exists")
	}
	m.store.orders[order.ID] = *order
	return nil
}

type memoryNotificationRepository struct {
	store *memoryStore
}

func (m *memoryNotificationRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (m *memoryNotificationRepository) Create(_ context.Context, n *model.Notification) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.notifications[n.ID] = *n
	return nil
}

func (m *memoryNotificationRepository) Claim(_ context.Context, n *model.Notification, staleBefore time.Time) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.notifications[n.ID]
	if !ok || !claimable(stored, staleBefore) {
		return false, nil
	}
	now := time.Now().UTC()
	stored.Status = model.Sending
	stored.Attempts++
	stored.ClaimedAt = &now
	m.store.notifications[n.ID] = stored
	n.Status, n.Attempts, n.ClaimedAt = stored.Status, stored.Attempts, stored.ClaimedAt
	return true, nil
}

func (m *memoryNotificationRepository) Update(_ context.Context, n *model.Notification) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.notifications[n.ID]
	if !ok || stored.Status != model.Sending {
		return model.ErrNotificationNotClaimed
	}
	m.store.notifications[n.ID] = *n
	return nil
}

func (m *memoryNotificationRepository) Find(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	n, ok := m.store.notifications[id]
	if !ok {
		return nil, model.ErrNotificationNotFound
	}
	return &n, nil
}

func (m *memoryNotificationRepository) FindUndelivered(_ context.Context, maxAttempts int, staleBefore time.Time, limit int) ([]model.Notification, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.Notification
	for _, n := range m.store.notifications {
		if claimable(n, staleBefore) && n.Attempts < maxAttempts {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func claimable(n model.Notification, staleBefore time.Time) bool {
	switch n.Status {
	case model.Pending, model.Failed:
		return true
	case model.Sending:
		return n.ClaimedAt != nil && n.ClaimedAt.Before(staleBefore)
	default:
		return false
	}
}

var _ model.ProductRepository = &mockProductRepository{}

type mockProductRepository struct {
	store map[uuid.UUID]model.Product
}

func (m *mockProductRepository) Find(_ context.Context, id uuid.UUID) (*model.Product, error) {
	product, ok := m.store[id]
	if !ok {
		return nil, model.ErrProductNotFound
	}
	return &product, nil
}

func (m *mockProductRepository) FindAll(_ context.Context) ([]model.Product, error) {
	products := make([]model.Product, 0, len(m.store))
	for _, product := range m.store {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return strings.Compare(products[i].Name, products[j].Name) < 0 })
	return products, nil
}

func (m *mockProductRepository) Store(_ context.Context, product *model.Product) error {
	m.store[product.ID] = *product
	return nil
}

type sentEmail struct {
	recipient string
	subject   string
	body      string
}

var _ model.NotificationSender = &mockSender{}

type mockSender struct {
	mu     sync.Mutex
	sent   []sentEmail
	err    error
	onSend func()
}

func (m *mockSender) Send(ctx context.Context, recipient, subject, body string) error {
	if m.onSend != nil {
		m.onSend()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{recipient: recipient, subject: subject, body: body})
	return nil
}

var _ service.EventDispatcher = &mockEventDispatcher{}

type mockEventDispatcher struct {
	mu     sync.Mutex
	events []service.Event
}

func (m *mockEventDispatcher) Dispatch(event service.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventDispatcher) Reset() {
	m.events = nil
}
