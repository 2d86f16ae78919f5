// Package cache keeps recently rendered pages in memory.
package cache

import (
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Renderer renders a page to an image. *document.Handle implements it.
type Renderer interface {
	RenderImage(page int, zoom float64, rotation int) (*image.RGBA, error)
}

// Key identifies a rendered page
type Key struct {
	Page     int
	Zoom     float64
	Rotation int
}

func (k Key) String() string {
	return fmt.Sprintf("%d@%g/%d", k.Page, k.Zoom, k.Rotation)
}

// PageCache is an LRU cache of rendered pages. Concurrent requests for
// the same page share one render. It is safe for concurrent use.
type PageCache struct {
	renderer Renderer
	pages    *lru.Cache[Key, *image.RGBA]
	group    singleflight.Group
}

// New returns a cache holding up to size pages rendered by r
func New(r Renderer, size int) (*PageCache, error) {
	pages, err := lru.New[Key, *image.RGBA](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}
	return &PageCache{renderer: r, pages: pages}, nil
}

// Get returns the rendered page, rendering it on a miss. Callers must not
// modify the returned image.
func (c *PageCache) Get(page int, zoom float64, rotation int) (*image.RGBA, error) {
	key := Key{Page: page, Zoom: zoom, Rotation: rotation}
	if img, ok := c.pages.Get(key); ok {
		return img, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if img, ok := c.pages.Get(key); ok {
			return img, nil
		}
		img, err := c.renderer.RenderImage(page, zoom, rotation)
		if err != nil {
			return nil, err
		}
		c.pages.Add(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.RGBA), nil
}

// Contains reports whether the page is cached, without rendering it
func (c *PageCache) Contains(page int, zoom float64, rotation int) bool {
	return c.pages.Contains(Key{Page: page, Zoom: zoom, Rotation: rotation})
}

// Len returns the number of cached pages
func (c *PageCache) Len() int {
	return c.pages.Len()
}

// Purge empties the cache
func (c *PageCache) Purge() {
	c.pages.Purge()
}
