package domain

import (
	"errors"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"github.com/google/uuid"
)

var (
	ErrModeConflict    = errors.New("cart holds a different kind of item; finish or clear the current cart first")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrLineNotFound    = errors.New("item not found in cart")
)

// Mode says whether a cart holds physical goods or a subscription selection.
type Mode string

const (
	ModeEmpty        Mode = "empty"
	ModePhysical     Mode = "physical"
	ModeSubscription Mode = "subscription"
	ModeMixed        Mode = "mixed"
)

// CartLine prices are minor units of the cart currency.
type CartLine struct {
	LineID          string          `bson:"line_id" json:"line_id"`
	ProductID       string          `bson:"product_id" json:"product_id"`
	VariantID       string          `bson:"variant_id,omitempty" json:"variant_id,omitempty"`
	Name            string          `bson:"name" json:"name"`
	Color           string          `bson:"color,omitempty" json:"color,omitempty"`
	ImageURL        string          `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Quantity        int             `bson:"quantity" json:"quantity"`
	UnitPrice       int64           `bson:"unit_price" json:"unit_price"`
	PriceAdjustment int64           `bson:"price_adjustment" json:"price_adjustment"`
	IsSubscription  bool            `bson:"is_subscription" json:"is_subscription"`
	Subscription    *plans.Selector `bson:"subscription,omitempty" json:"subscription,omitempty"`
	AddedAt         time.Time       `bson:"added_at" json:"added_at"`
}

// Subtotal of the line. A subscription unit price already carries the tier discount.
func (l CartLine) Subtotal() int64 {
	if l.IsSubscription {
		return l.UnitPrice * int64(l.Quantity)
	}
	return (l.UnitPrice + l.PriceAdjustment) * int64(l.Quantity)
}

type Cart struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Currency  string     `bson:"currency" json:"currency"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

func NewCart(id, currency string) *Cart {
	now := time.Now()
	return &Cart{
		ID:        id,
		Currency:  currency,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Mode() Mode {
	if len(c.Lines) == 0 {
		return ModeEmpty
	}
	var subs, physical int
	for _, l := range c.Lines {
		if l.IsSubscription {
			subs++
		} else {
			physical++
		}
	}
	switch {
	case subs > 0 && physical > 0:
		return ModeMixed
	case subs > 0:
		return ModeSubscription
	default:
		return ModePhysical
	}
}

// AddLine adds a physical line or a subscription selection. A line of the other mode
// is rejected without touching the cart; a subscription selection replaces whatever
// selection was there; a physical line for an existing (product, variant) pair sums
// quantities.
func (c *Cart) AddLine(line CartLine) error {
	if line.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	line.IsSubscription = line.Subscription != nil

	incoming := ModePhysical
	if line.IsSubscription {
		incoming = ModeSubscription
	}
	if current := c.Mode(); current != ModeEmpty && current != incoming {
		return ErrModeConflict
	}

	if line.LineID == "" {
		line.LineID = uuid.NewString()
	}
	if line.AddedAt.IsZero() {
		line.AddedAt = time.Now()
	}

	if line.IsSubscription {
		c.Lines = []CartLine{line}
		c.touch()
		return nil
	}

	if i := c.find(line.ProductID, line.VariantID); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
		c.touch()
		return nil
	}

	c.Lines = append(c.Lines, line)
	c.touch()
	return nil
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(productID, variantID string, quantity int) error {
	if quantity <= 0 {
		return c.RemoveLine(productID, variantID)
	}
	i := c.find(productID, variantID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines[i].Quantity = quantity
	c.touch()
	return nil
}

func (c *Cart) RemoveLine(productID, variantID string) error {
	i := c.find(productID, variantID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.touch()
	return nil
}

// Total in minor units.
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

func (c *Cart) Clear() {
	c.Lines = []CartLine{}
	c.touch()
}

func (c *Cart) SubscriptionLine() (CartLine, bool) {
	if c.Mode() != ModeSubscription {
		return CartLine{}, false
	}
	return c.Lines[0], true
}

func (c *Cart) find(productID, variantID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && l.VariantID == variantID {
			return i
		}
	}
	return -1
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now()
}
