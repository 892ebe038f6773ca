package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bakehouse/ordering/internal/domain"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrForbidden       = errors.New("not allowed to check out this cart")
	ErrNoShortcut      = errors.New("seller profile has no receipt shortcut")
	ErrReturnsDisabled = errors.New("returns are not enabled")
)

const receiptNumberAttempts = 3

type OrderWriter interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
}

type ReceiptWriter interface {
	NextReceiptNo(ctx context.Context, sellerID, shortcut string, year int) (string, error)
	InsertReceipt(ctx context.Context, receipt *domain.Receipt) error
	InsertReceiptItems(ctx context.Context, receiptID string, items []domain.ReceiptItem) error
}

type ReturnWriter interface {
	InsertReturn(ctx context.Context, ret *domain.Return) error
	InsertReturnItems(ctx context.Context, returnID string, items []domain.ReturnItem) error
}

type StockWriter interface {
	DecrementStoredItems(ctx context.Context, userID string, items []domain.StoredItem) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Checkout turns carts into persisted orders and receipts.
type Checkout struct {
	carts         Store
	orders        OrderWriter
	receipts      ReceiptWriter
	returns       ReturnWriter
	stock         StockWriter
	orderEvents   Publisher
	receiptEvents Publisher
	logger        *slog.Logger
	now           func() time.Time

	checkouts metric.Int64Counter
	failures  metric.Int64Counter
}

type CheckoutOption func(*Checkout)

func WithOrderEvents(p Publisher) CheckoutOption {
	return func(c *Checkout) { c.orderEvents = p }
}

func WithReceiptEvents(p Publisher) CheckoutOption {
	return func(c *Checkout) { c.receiptEvents = p }
}

func WithReturnWriter(w ReturnWriter) CheckoutOption {
	return func(c *Checkout) { c.returns = w }
}

func WithStockWriter(s StockWriter) CheckoutOption {
	return func(c *Checkout) { c.stock = s }
}

func WithClock(now func() time.Time) CheckoutOption {
	return func(c *Checkout) { c.now = now }
}

func NewCheckout(carts Store, orders OrderWriter, receipts ReceiptWriter, logger *slog.Logger, opts ...CheckoutOption) (*Checkout, error) {
	meter := otel.Meter("bakehouse/cart")

	checkouts, err := meter.Int64Counter("bakery.checkouts",
		metric.WithDescription("Completed checkouts by cart kind"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("bakery.checkout.failures",
		metric.WithDescription("Checkouts aborted by an error"))
	if err != nil {
		return nil, err
	}

	c := &Checkout{
		carts:     carts,
		orders:    orders,
		receipts:  receipts,
		logger:    logger,
		now:       time.Now,
		checkouts: checkouts,
		failures:  failures,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type OrderRequest struct {
	// Actor owns the cart. Customer is who the order is placed for; only admins may differ.
	Actor    domain.Profile
	Customer domain.Profile
	Date     string
	Note     string
}

// CheckoutOrder creates the order row, then all its item rows in one call, then clears the cart.
// A failure before the clear leaves the cart untouched. An order whose items failed to insert
// is not rolled back.
func (c *Checkout) CheckoutOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	order, err := c.checkoutOrder(ctx, req)
	c.record(ctx, KindOrder, err)
	return order, err
}

func (c *Checkout) checkoutOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	if req.Customer.ID == "" {
		req.Customer = req.Actor
	}
	if req.Customer.ID != req.Actor.ID && req.Actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	cart, err := c.carts.Get(ctx, KindOrder, req.Actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	date := req.Date
	if date == "" {
		date = c.now().Format(domain.DateLayout)
	}

	role := req.Customer.Role
	order := &domain.Order{
		Date:      date,
		Status:    domain.OrderStatusNew,
		Total:     cart.Total(role),
		UserID:    req.Customer.ID,
		Note:      req.Note,
		PaidBy:    req.Customer.PaidBy,
		CreatedAt: c.now().UTC(),
	}

	if err := c.orders.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("failed to create order")
	}

	items := make([]domain.OrderItem, 0, cart.Len())
	for _, line := range cart.Items {
		items = append(items, domain.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     role.PriceOf(line.Product),
			VAT:       line.Product.VAT,
		})
	}

	if err := c.orders.InsertOrderItems(ctx, order.ID, items); err != nil {
		c.logger.Error("order created without items", "error", err, "order_id", order.ID)
		return nil, fmt.Errorf("create order items: %w", err)
	}
	order.Items = items

	c.clear(ctx, KindOrder, req.Actor.ID)

	if c.orderEvents != nil {
		event := domain.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			CustomerName:  req.Customer.FullName,
			CustomerEmail: req.Customer.Email,
			Date:          order.Date,
			Total:         order.Total,
			Note:          order.Note,
			Items:         order.Items,
			Timestamp:     order.CreatedAt,
		}
		if err := c.orderEvents.Publish(ctx, order.ID, event); err != nil {
			c.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	c.logger.Info("order checked out", "order_id", order.ID, "user_id", order.UserID, "items", len(items), "total", order.Total.String())
	return order, nil
}

type ReceiptRequest struct {
	Seller  domain.Profile
	BuyerID string
	PaidBy  domain.PaidBy
	Date    time.Time
}

// CheckoutReceipt records a point-of-sale sale from the seller's receipt cart.
func (c *Checkout) CheckoutReceipt(ctx context.Context, req ReceiptRequest) (*domain.Receipt, error) {
	receipt, err := c.checkoutReceipt(ctx, req)
	c.record(ctx, KindReceipt, err)
	return receipt, err
}

func (c *Checkout) checkoutReceipt(ctx context.Context, req ReceiptRequest) (*domain.Receipt, error) {
	if req.Seller.Role != domain.RoleStore && req.Seller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if req.Seller.Shortcut == "" {
		return nil, ErrNoShortcut
	}

	cart, err := c.carts.Get(ctx, KindReceipt, req.Seller.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	date := req.Date
	if date.IsZero() {
		date = c.now()
	}

	receipt := &domain.Receipt{
		Date:      date.UTC(),
		Total:     cart.RetailTotal(),
		PaidBy:    req.PaidBy,
		SellerID:  req.Seller.ID,
		BuyerID:   req.BuyerID,
		CreatedAt: c.now().UTC(),
	}

	for attempt := 1; ; attempt++ {
		receiptNo, err := c.receipts.NextReceiptNo(ctx, req.Seller.ID, req.Seller.Shortcut, date.Year())
		if err != nil {
			return nil, fmt.Errorf("generate receipt number: %w", err)
		}
		receipt.ReceiptNo = receiptNo

		err = c.receipts.InsertReceipt(ctx, receipt)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateReceiptNo) && attempt < receiptNumberAttempts {
			c.logger.Info("receipt number taken, retrying", "receipt_no", receiptNo, "attempt", attempt)
			continue
		}
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	items := make([]domain.ReceiptItem, 0, cart.Len())
	stored := make([]domain.StoredItem, 0, cart.Len())
	for _, line := range cart.Items {
		items = append(items, domain.ReceiptItem{
			ReceiptID: receipt.ID,
			ProductID: line.ProductID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
			VAT:       line.Product.VAT,
		})
		stored = append(stored, domain.StoredItem{
			UserID:    req.Seller.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	if err := c.receipts.InsertReceiptItems(ctx, receipt.ID, items); err != nil {
		c.logger.Error("receipt created without items", "error", err, "receipt_id", receipt.ID)
		return nil, fmt.Errorf("create receipt items: %w", err)
	}
	receipt.Items = items

	if c.stock != nil {
		if err := c.stock.DecrementStoredItems(ctx, req.Seller.ID, stored); err != nil {
			return nil, fmt.Errorf("update stored items: %w", err)
		}
	}

	c.clear(ctx, KindReceipt, req.Seller.ID)

	if c.receiptEvents != nil {
		event := domain.ReceiptCreatedEvent{
			ReceiptID:  receipt.ID,
			ReceiptNo:  receipt.ReceiptNo,
			SellerID:   req.Seller.ID,
			SellerName: req.Seller.FullName,
			Receipt:    *receipt,
			Timestamp:  receipt.CreatedAt,
		}
		if err := c.receiptEvents.Publish(ctx, receipt.ID, event); err != nil {
			c.logger.Error("failed to publish receipt created event", "error", err, "receipt_id", receipt.ID)
		}
	}

	c.logger.Info("receipt checked out", "receipt_id", receipt.ID, "receipt_no", receipt.ReceiptNo, "seller_id", req.Seller.ID)
	return receipt, nil
}

type ReturnRequest struct {
	User domain.Profile
	Date string
}

// CheckoutReturn records the goods a store or mobile seller sends back, priced at retail.
// The returned goods leave the seller's stock.
func (c *Checkout) CheckoutReturn(ctx context.Context, req ReturnRequest) (*domain.Return, error) {
	ret, err := c.checkoutReturn(ctx, req)
	c.record(ctx, KindReturn, err)
	return ret, err
}

func (c *Checkout) checkoutReturn(ctx context.Context, req ReturnRequest) (*domain.Return, error) {
	if c.returns == nil {
		return nil, ErrReturnsDisabled
	}
	if req.User.Role != domain.RoleStore && req.User.Role != domain.RoleMobil {
		return nil, ErrForbidden
	}

	cart, err := c.carts.Get(ctx, KindReturn, req.User.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	date := req.Date
	if date == "" {
		date = c.now().Format(domain.DateLayout)
	}

	ret := &domain.Return{
		Date:      date,
		Total:     cart.RetailTotal(),
		UserID:    req.User.ID,
		CreatedAt: c.now().UTC(),
	}

	if err := c.returns.InsertReturn(ctx, ret); err != nil {
		if errors.Is(err, domain.ErrDuplicateReturn) {
			return nil, err
		}
		return nil, fmt.Errorf("create return: %w", err)
	}

	items := make([]domain.ReturnItem, 0, cart.Len())
	stored := make([]domain.StoredItem, 0, cart.Len())
	for _, line := range cart.Items {
		items = append(items, domain.ReturnItem{
			ReturnID:  ret.ID,
			ProductID: line.ProductID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
			VAT:       line.Product.VAT,
		})
		stored = append(stored, domain.StoredItem{
			UserID:    req.User.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	if err := c.returns.InsertReturnItems(ctx, ret.ID, items); err != nil {
		c.logger.Error("return created without items", "error", err, "return_id", ret.ID)
		return nil, fmt.Errorf("create return items: %w", err)
	}
	ret.Items = items

	if c.stock != nil {
		if err := c.stock.DecrementStoredItems(ctx, req.User.ID, stored); err != nil {
			return nil, fmt.Errorf("update stored items: %w", err)
		}
	}

	c.clear(ctx, KindReturn, req.User.ID)

	c.logger.Info("return checked out", "return_id", ret.ID, "user_id", ret.UserID, "date", ret.Date, "total", ret.Total.String())
	return ret, nil
}

// clear runs after the rows are persisted; a failure here must not report the checkout as failed.
func (c *Checkout) clear(ctx context.Context, kind Kind, userID string) {
	if err := c.carts.Delete(ctx, kind, userID); err != nil {
		c.logger.Error("failed to clear cart after checkout", "error", err, "kind", kind, "user_id", userID)
	}
}

func (c *Checkout) record(ctx context.Context, kind Kind, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	if err != nil {
		c.failures.Add(ctx, 1, attrs)
		return
	}
	c.checkouts.Add(ctx, 1, attrs)
}
