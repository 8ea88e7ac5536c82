package processor

import (
	"strconv"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/exp/maps"
)

const (
	nameCacheSize = 100_000
	nameCacheTTL  = time.Hour
)

// CachedNameProcessor memoizes another NameProcessor. Timer names
// repeat across millions of rows, so normalization and metadata
// extraction are computed once per distinct input. Safe for concurrent
// use; cached metadata maps are cloned on every hit because node
// processors mutate them downstream.
type CachedNameProcessor struct {
	inner    NameProcessor
	names    *ccache.Cache[string]
	metadata *ccache.Cache[map[string]any]
}

var _ NameProcessor = (*CachedNameProcessor)(nil)

func NewCachedNameProcessor(inner NameProcessor) *CachedNameProcessor {
	return &CachedNameProcessor{
		inner:    inner,
		names:    ccache.New(ccache.Configure[string]().MaxSize(nameCacheSize)),
		metadata: ccache.New(ccache.Configure[map[string]any]().MaxSize(nameCacheSize)),
	}
}

func (p *CachedNameProcessor) ProcessName(timerName string, timerID int64, depth int) string {
	key := timerName + "\x00" + strconv.FormatInt(timerID, 10) + "\x00" + strconv.Itoa(depth)
	if item := p.names.Get(key); item != nil && !item.Expired() {
		return item.Value()
	}
	name := p.inner.ProcessName(timerName, timerID, depth)
	p.names.Set(key, name, nameCacheTTL)
	return name
}

func (p *CachedNameProcessor) ExtractMetadata(timerName string, timerID int64) map[string]any {
	key := timerName + "\x00" + strconv.FormatInt(timerID, 10)
	if item := p.metadata.Get(key); item != nil && !item.Expired() {
		return maps.Clone(item.Value())
	}
	metadata := p.inner.ExtractMetadata(timerName, timerID)
	p.metadata.Set(key, maps.Clone(metadata), nameCacheTTL)
	return metadata
}
