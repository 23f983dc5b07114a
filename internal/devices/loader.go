package devices

import (
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/eds"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/ingest"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/iodd"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/metrics"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Loaded is a validated upload together with its parse result. Result is
// shared with the parse cache and must not be modified.
type Loaded struct {
	Package *ingest.Package
	Result  *types.ParseResult
	Cached  bool
}

// Loader validates uploads and dispatches them to the front end for their
// format. Results are cached by upload content so re-imports skip parsing.
type Loader struct {
	iodd   *iodd.Parser
	eds    *eds.Parser
	limits ingest.Limits
	cache  *cache.Cache
	logger *zap.Logger
}

func NewLoader(cat *catalog.Catalog, limits ingest.Limits, cacheTTL time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		iodd:   iodd.NewParser(cat, logger),
		eds:    eds.NewParser(logger),
		limits: limits,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
	}
}

func (l *Loader) Load(filename string, data []byte) (*Loaded, error) {
	pkg, err := ingest.Open(filename, data, l.limits)
	if err != nil {
		metrics.RejectedUploads.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	key := string(pkg.Format) + ":" + ingest.Hash(data) + ":" + filename
	if cached, ok := l.cache.Get(key); ok {
		metrics.ParseCacheHits.Inc()
		l.logger.Debug("Parse cache hit",
			zap.String("filename", filename),
			zap.String("hash", pkg.Hash))
		return &Loaded{Package: pkg, Result: cached.(*types.ParseResult), Cached: true}, nil
	}

	start := time.Now()
	var res *types.ParseResult
	switch pkg.Format {
	case types.FormatIODD:
		res, err = l.iodd.Parse(pkg.Document, iodd.WithAssets(pkg.Assets), iodd.WithSourceName(pkg.Name))
	case types.FormatEDS:
		res, err = l.eds.Parse(pkg.Document, eds.WithAssets(pkg.Assets), eds.WithSourceName(pkg.Name))
	default:
		err = fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, pkg.Format)
	}
	metrics.ParseDuration.WithLabelValues(string(pkg.Format)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ParseFailures.WithLabelValues(string(pkg.Format)).Inc()
		return nil, fmt.Errorf("failed to parse %s: %w", pkg.Name, err)
	}
	metrics.ParseWarnings.WithLabelValues(string(pkg.Format)).Add(float64(len(res.Warnings)))

	l.cache.SetDefault(key, res)
	return &Loaded{Package: pkg, Result: res}, nil
}

func (l *Loader) ClearCache() {
	l.cache.Flush()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedExtension):
		return "extension"
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		return "size"
	case errors.Is(err, ingest.ErrInvalidEncoding):
		return "encoding"
	case errors.Is(err, ingest.ErrNoDocument):
		return "no_document"
	}
	return "invalid"
}
