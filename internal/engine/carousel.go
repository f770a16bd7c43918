package engine

import (
	"errors"
	"strconv"
	"sync"

	"github.com/fjod/go_cart/cart-drawer/internal/dom"
)

// SlideCarousel is a headless stand-in for the recommendations slider. It
// marks the first slide active and records how often it was mounted.
type SlideCarousel struct {
	mu     sync.Mutex
	mounts int
}

func NewSlideCarousel() *SlideCarousel {
	return &SlideCarousel{}
}

func (c *SlideCarousel) Destroy(el *dom.Element) {
	el.RemoveAttr("data-slides")
	for _, slide := range el.QueryAll(".swiper-slide-active") {
		slide.RemoveClass("swiper-slide-active")
	}
}

func (c *SlideCarousel) Mount(el *dom.Element, slides int) error {
	first := el.Query(".swiper-slide")
	if first == nil || slides == 0 {
		return errors.New("carousel has no slides")
	}
	el.SetAttr("data-slides", strconv.Itoa(slides))
	first.AddClass("swiper-slide-active")

	c.mu.Lock()
	c.mounts++
	c.mu.Unlock()
	return nil
}

func (c *SlideCarousel) Mounts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounts
}
