package paging

// MaxPageSize caps how many rows one page may request. Upstream callers are
// mobile clients on factory wifi, so pages stay small.
const MaxPageSize = 20

// Page is a sanitized page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps raw paging input: pages start at 1 and the size is forced
// into [1, MaxPageSize], with defaultSize applied when the size is missing.
func NewPage(number, size, defaultSize int) Page {
	if number < 1 {
		number = 1
	}
	if defaultSize < 1 || defaultSize > MaxPageSize {
		defaultSize = MaxPageSize
	}
	if size < 1 {
		size = defaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ClampLimit forces a raw limit into [1, MaxPageSize], with defaultLimit
// applied when the limit is missing.
func ClampLimit(limit, defaultLimit int) int {
	if defaultLimit < 1 || defaultLimit > MaxPageSize {
		defaultLimit = MaxPageSize
	}
	if limit < 1 {
		return defaultLimit
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Accumulator collects load-more style pagination on the client side of a
// listing: each page of items is appended, and a failed fetch rolls the
// cursor back so the page can be retried.
type Accumulator[T any] struct {
	items  []T
	chunks []chunk
	seen   map[string]struct{}
	key    func(T) string
	page   int
	size   int
	done   bool
}

// chunk remembers what one Collect call appended, so Rollback can undo it.
type chunk struct {
	size int
	keys []string
}

// NewAccumulator starts before the first page with the given page size.
func NewAccumulator[T any](size int) *Accumulator[T] {
	if size < 1 || size > MaxPageSize {
		size = MaxPageSize
	}
	return &Accumulator[T]{size: size}
}

// NewKeyedAccumulator dedups collected items by key, so a record that drifts
// across page boundaries between fetches is not shown twice. Items with an
// empty key are always kept.
func NewKeyedAccumulator[T any](size int, key func(T) string) *Accumulator[T] {
	acc := NewAccumulator[T](size)
	acc.key = key
	acc.seen = map[string]struct{}{}
	return acc
}

// NextPage advances the cursor and returns the page to fetch.
func (a *Accumulator[T]) NextPage() Page {
	a.page++
	return Page{Number: a.page, Size: a.size}
}

// Collect appends a fetched page. A short page marks the accumulator done.
func (a *Accumulator[T]) Collect(items []T) {
	var added chunk
	for _, item := range items {
		if a.key != nil {
			if k := a.key(item); k != "" {
				if _, dup := a.seen[k]; dup {
					continue
				}
				a.seen[k] = struct{}{}
				added.keys = append(added.keys, k)
			}
		}
		a.items = append(a.items, item)
		added.size++
	}
	a.chunks = append(a.chunks, added)
	if len(items) < a.size {
		a.done = true
	}
}

// Rollback rewinds the cursor by one page. After a failed fetch the same page
// is simply returned again; when the page was already collected, its items
// come back off the accumulator too, so stepping back to the previous page
// drops what the last fetch appended.
func (a *Accumulator[T]) Rollback() {
	if a.page == 0 {
		return
	}
	a.page--
	if len(a.chunks) <= a.page {
		return
	}
	last := a.chunks[len(a.chunks)-1]
	a.chunks = a.chunks[:len(a.chunks)-1]
	a.items = a.items[:len(a.items)-last.size]
	for _, k := range last.keys {
		delete(a.seen, k)
	}
	a.done = false
}

// Done reports whether the last collected page was short, meaning there is
// nothing more to fetch.
func (a *Accumulator[T]) Done() bool {
	return a.done
}

// Items returns everything collected so far.
func (a *Accumulator[T]) Items() []T {
	return a.items
}
