package downloader

import (
	"context"
	"sync"
	"time"
)

// Caches downloaded files in memory. Only requests with
// GetOptions.Cache set are cached.
type Memory struct {
	mutex sync.Mutex
	cache map[string]downloaderCacheEntry

	// Does the actual fetching. Defaults to plain HTTP.
	Upstream Downloader
	TimeNow  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		cache:    make(map[string]downloaderCacheEntry),
		Upstream: HTTP{},
		TimeNow:  time.Now,
	}
}

type downloaderCacheEntry struct {
	data       []byte
	expiration time.Time
}

func (d *Memory) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if options.Cache {
		d.mutex.Lock()
		entry, ok := d.cache[url]
		d.mutex.Unlock()

		if ok && entry.expiration.After(d.TimeNow()) {
			return entry.data, nil
		}
	}

	body, err := d.Upstream.Get(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		d.mutex.Lock()
		d.cache[url] = downloaderCacheEntry{
			data:       body,
			expiration: d.TimeNow().Add(options.CacheTTL),
		}
		d.mutex.Unlock()
	}

	return body, nil
}

// Drops all cached entries.
func (d *Memory) Purge() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.cache = make(map[string]downloaderCacheEntry)
}
