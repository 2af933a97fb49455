package ingest

import (
	"fmt"
	"sync"
)

// Transform reshapes a decoded API payload into raw items.
type Transform func(payload any) ([]RawItem, error)

// Transforms is a name → func registry referenced by sources.yaml.
type Transforms struct {
	mu    sync.RWMutex
	funcs map[string]Transform
}

func NewTransforms() *Transforms {
	return &Transforms{funcs: make(map[string]Transform)}
}

// DefaultTransforms registers the built-in payload shapes.
func DefaultTransforms() *Transforms {
	t := NewTransforms()
	t.Register("wordpress_posts", WordPressPosts)
	return t
}

func (t *Transforms) Register(name string, fn Transform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[name] = fn
}

func (t *Transforms) Get(name string) (Transform, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[name]
	return fn, ok
}

// WordPressPosts maps a wp-json/wp/v2/posts array. Titles and excerpts arrive
// as {"rendered": "..."} objects; ACF fields, when exposed, carry the award
// details.
func WordPressPosts(payload any) ([]RawItem, error) {
	posts, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("wordpress_posts: expected an array, got %T", payload)
	}

	items := make([]RawItem, 0, len(posts))
	for _, p := range posts {
		post, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if status, _ := post["status"].(string); status != "" && status != "publish" {
			continue
		}

		item := RawItem{
			"id":          post["id"],
			"name":        post["title"],
			"link":        post["link"],
			"description": post["content"],
			"summary":     post["excerpt"],
		}
		if acf, ok := post["acf"].(map[string]any); ok {
			for k, v := range acf {
				if _, taken := item[k]; !taken {
					item[k] = v
				}
			}
		}
		// The excerpt reads better than the full body as eligibility text.
		if _, ok := item["eligibility"]; !ok {
			item["eligibility"] = post["excerpt"]
		}
		items = append(items, item)
	}
	return items, nil
}
