package cards

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/ports"
)

var ErrDuplicateCard = errors.New("cards: duplicate card id")

// Deck holds the cards of one dashboard in display order.
type Deck struct {
	obs ports.Observability

	mu    sync.RWMutex
	cards []Card
	byID  map[string]Card
}

func NewDeck(obs ports.Observability) *Deck {
	if obs == nil {
		obs = observability.Discard{}
	}
	return &Deck{obs: obs, byID: make(map[string]Card)}
}

func (d *Deck) Register(card Card) error {
	if card == nil {
		return errors.New("cards: nil card")
	}
	id := strings.TrimSpace(card.ID())
	if id == "" {
		return errors.New("cards: card has no id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCard, id)
	}
	d.cards = append(d.cards, card)
	d.byID[id] = card
	return nil
}

func (d *Deck) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, len(d.cards))
	for i, c := range d.cards {
		ids[i] = c.ID()
	}
	return ids
}

// Start starts every card. If one fails, the cards started before it are
// closed again.
func (d *Deck) Start() error {
	cards := d.snapshot()
	for i, c := range cards {
		if err := c.Start(); err != nil {
			for _, started := range cards[:i] {
				_ = started.Close()
			}
			return fmt.Errorf("start card %s: %w", c.ID(), err)
		}
	}
	return nil
}

// Close closes every card, even after a failure, and returns the joined
// errors.
func (d *Deck) Close() error {
	var errs []error
	for _, c := range d.snapshot() {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close card %s: %w", c.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Views renders every card. A card whose view fails or panics is logged and
// left out.
func (d *Deck) Views() []View {
	cards := d.snapshot()
	views := make([]View, 0, len(cards))
	for _, c := range cards {
		v, err := d.safeView(c)
		if err != nil {
			continue
		}
		views = append(views, v)
	}
	return views
}

func (d *Deck) View(id string) (View, bool) {
	d.mu.RLock()
	c, ok := d.byID[strings.TrimSpace(id)]
	d.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	v, err := d.safeView(c)
	if err != nil {
		return View{}, false
	}
	return v, true
}

func (d *Deck) snapshot() []Card {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Card(nil), d.cards...)
}

func (d *Deck) safeView(c Card) (v View, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			v = View{}
		}
		if err != nil {
			d.obs.LogError("card_view_failed", err, ports.Field{Key: "component", Value: c.ID()})
		}
	}()
	return c.View()
}
