package lang

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

const (
	// Mixed renders every language of a template, one per line.
	Mixed = "Mixed"
	// SelectLang is sent ahead of anything rendered for a player without a language.
	SelectLang = "selectLang"
)

// Source reads one message id of the language table.
type Source interface {
	LoadInto(ctx context.Context, key string, dst any, keys ...string) error
}

// Catalog renders localized messages from the language table document,
// caching the templates of each message id for a while.
type Catalog struct {
	source Source
	key    string
	cache  cache.Cache[string, *structs.Ordered[string]]
}

func NewCatalog(source Source, ttl time.Duration) *Catalog {
	return &Catalog{
		source: source,
		key:    structs.LanguageKey,
		cache:  cache.NewCache[string, *structs.Ordered[string]]().WithTTL(ttl).WithMaxKeys(1024),
	}
}

// Purge drops every cached template, so edits to the language table show up at once.
func (c *Catalog) Purge() {
	c.cache.Purge()
}

// Templates returns the language -> template map for id, or nil if id has none.
func (c *Catalog) Templates(ctx context.Context, id string) (*structs.Ordered[string], error) {
	if templates, found := c.cache.Get(id); found {
		return templates, nil
	}
	templates := structs.NewOrdered[string]()
	if err := c.source.LoadInto(ctx, c.key, templates, id); errors.Is(err, os.ErrNotExist) {
		templates = nil
	} else if err != nil {
		return nil, econ.WithStack(err)
	}
	c.cache.Set(id, templates, 0)
	return templates, nil
}

// Render resolves id in language, substituting ${i} with args[i]. An empty language means Mixed.
// Missing templates render as a bracketed list of id and args.
func (c *Catalog) Render(ctx context.Context, id string, language string, args ...string) (string, error) {
	if language == "" {
		language = Mixed
	}
	templates, err := c.Templates(ctx, id)
	if err != nil {
		return "", err
	}
	text := ""
	if language == Mixed {
		lines := []string{}
		for _, template := range templates.Each() {
			lines = append(lines, template)
		}
		text = strings.Join(lines, "\n")
	} else if template, found := templates.Get(language); found {
		text = template
	}
	if text == "" {
		text = Fallback(id, args...)
		log.Printf("missing language entry, using fallback: %s", text)
	}
	for i, arg := range args {
		text = strings.ReplaceAll(text, "${"+strconv.Itoa(i)+"}", arg)
	}
	return strings.ReplaceAll(text, structs.Separator, "#"), nil
}

// Fallback renders "['id', 'arg0', ...]".
func Fallback(id string, args ...string) string {
	return "['" + strings.Join(append([]string{id}, args...), "', '") + "']"
}
