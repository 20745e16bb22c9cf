package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG - Guests, products and payment methods
// =============================================================================

// Catalog manages the reference data the lifecycle and ledger point at.
// None of it carries invariants beyond field validation and protected
// deletes, but it still goes through the same store and unit of work.
type Catalog struct {
	rt *runtime
}

// --- Guests ---

type NewGuest struct {
	Name     string
	Email    string
	Phone    string
	Document string
	Passport string
	Address  string
	City     string
	State    string
	Country  string
}

func (c *Catalog) AddGuest(ctx context.Context, req NewGuest) (Guest, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Guest{}, &ValidationError{Field: "name", Message: "is required"}
	}
	g := Guest{
		ID:        GuestID(c.rt.newID()),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     req.Phone,
		Document:  req.Document,
		Passport:  req.Passport,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Country:   req.Country,
		CreatedAt: c.rt.now(),
	}
	if err := c.rt.withTx(ctx, "add guest", func(s Store) error { return s.InsertGuest(ctx, g) }); err != nil {
		return Guest{}, err
	}
	c.rt.log.Info("guest added", "guest", g.ID)
	return g, nil
}

func (c *Catalog) Guest(ctx context.Context, id GuestID) (Guest, error) {
	g, err := c.rt.store.GetGuest(ctx, id)
	return g, c.rt.read("get guest", err)
}

func (c *Catalog) Guests(ctx context.Context) ([]Guest, error) {
	gs, err := c.rt.store.ListGuests(ctx)
	return gs, c.rt.read("list guests", err)
}

// RemoveGuest fails with ErrProtected while any booking references the guest.
func (c *Catalog) RemoveGuest(ctx context.Context, id GuestID) error {
	return c.rt.withTx(ctx, "remove guest", func(s Store) error { return s.DeleteGuest(ctx, id) })
}

// --- Products ---

type NewProduct struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

func (c *Catalog) AddProduct(ctx context.Context, req NewProduct) (Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Product{}, &ValidationError{Field: "name", Message: "is required"}
	}
	if err := positive("price", req.Price); err != nil {
		return Product{}, err
	}
	if req.Stock < 0 {
		return Product{}, &ValidationError{Field: "stock", Message: "must not be negative"}
	}
	p := Product{
		ID:        ProductID(c.rt.newID()),
		Name:      strings.TrimSpace(req.Name),
		Price:     req.Price,
		Stock:     req.Stock,
		Active:    true,
		CreatedAt: c.rt.now(),
	}
	if err := c.rt.withTx(ctx, "add product", func(s Store) error { return s.InsertProduct(ctx, p) }); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Restock adds quantity units to a product's stock.
func (c *Catalog) Restock(ctx context.Context, id ProductID, quantity int) (Product, error) {
	if quantity <= 0 {
		return Product{}, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	var p Product
	err := c.rt.withTx(ctx, "restock product", func(s Store) error {
		if err := s.AdjustStock(ctx, id, quantity); err != nil {
			return err
		}
		var err error
		p, err = s.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	c.rt.log.Info("product restocked", "product", id, "quantity", quantity, "stock", p.Stock)
	return p, nil
}

func (c *Catalog) Product(ctx context.Context, id ProductID) (Product, error) {
	p, err := c.rt.store.GetProduct(ctx, id)
	return p, c.rt.read("get product", err)
}

func (c *Catalog) Products(ctx context.Context) ([]Product, error) {
	ps, err := c.rt.store.ListProducts(ctx)
	return ps, c.rt.read("list products", err)
}

// --- Payment methods ---

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins its words with dashes.
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (c *Catalog) AddPaymentMethod(ctx context.Context, name string, active bool) (PaymentMethod, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PaymentMethod{}, &ValidationError{Field: "name", Message: "is required"}
	}
	m := PaymentMethod{
		ID:        PaymentMethodID(c.rt.newID()),
		Name:      name,
		Slug:      Slugify(name),
		Active:    active,
		CreatedAt: c.rt.now(),
	}
	if err := c.rt.withTx(ctx, "add payment method", func(s Store) error { return s.InsertPaymentMethod(ctx, m) }); err != nil {
		return PaymentMethod{}, err
	}
	return m, nil
}

func (c *Catalog) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	ms, err := c.rt.store.ListPaymentMethods(ctx)
	return ms, c.rt.read("list payment methods", err)
}
