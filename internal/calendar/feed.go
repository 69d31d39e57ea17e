package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFeedURL is the public academic calendar of the university
	DefaultFeedURL     = "https://calendar.google.com/calendar/ical/aanycu%40gmail.com/public/basic.ics"
	defaultHTTPTimeout = 10 * time.Second
)

// ICSFeed implements Feed by downloading an iCalendar document over HTTP.
// Every call fetches the whole document again.
type ICSFeed struct {
	url        string
	httpClient *http.Client
	parser     *icsParser
	logger     *zap.Logger
}

// NewICSFeed creates a new ICSFeed instance
func NewICSFeed(url string, timeout time.Duration, loc *time.Location, logger *zap.Logger) *ICSFeed {
	if url == "" {
		url = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &ICSFeed{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		parser: newICSParser(loc, logger),
		logger: logger,
	}
}

// Events fetches and parses the feed
func (f *ICSFeed) Events(ctx context.Context, year int, month time.Month) ([]HolidayEvent, error) {
	f.logger.Debug("Fetching holiday feed",
		zap.String("url", f.url),
		zap.Int("year", year),
		zap.Int("month", int(month)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holiday feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	return f.parser.parse(body, year, month)
}

// FileFeed implements Feed using a local .ics file
type FileFeed struct {
	filePath string
	parser   *icsParser
	logger   *zap.Logger
}

// NewFileFeed creates a new FileFeed instance
func NewFileFeed(filePath string, loc *time.Location, logger *zap.Logger) *FileFeed {
	return &FileFeed{
		filePath: filePath,
		parser:   newICSParser(loc, logger),
		logger:   logger,
	}
}

// Events reads and parses the file
func (ff *FileFeed) Events(ctx context.Context, year int, month time.Month) ([]HolidayEvent, error) {
	body, err := os.ReadFile(ff.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}

	events, err := ff.parser.parse(body, year, month)
	if err != nil {
		return nil, fmt.Errorf("calendar file %s: %w", ff.filePath, err)
	}

	ff.logger.Debug("Calendar file loaded",
		zap.String("file", ff.filePath),
		zap.Int("events", len(events)))

	return events, nil
}

// CompositeFeed implements Feed with fallback strategy
// Primary: ICSFeed (network)
// Fallback: FileFeed (local snapshot)
type CompositeFeed struct {
	primary  Feed
	fallback Feed
	logger   *zap.Logger
}

// NewCompositeFeed creates a new CompositeFeed
func NewCompositeFeed(primary, fallback Feed, logger *zap.Logger) *CompositeFeed {
	return &CompositeFeed{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Events tries the primary feed first
func (cf *CompositeFeed) Events(ctx context.Context, year int, month time.Month) ([]HolidayEvent, error) {
	events, err := cf.primary.Events(ctx, year, month)
	if err == nil {
		return events, nil
	}

	cf.logger.Warn("Primary holiday feed failed, falling back",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Error(err))

	events, fallbackErr := cf.fallback.Events(ctx, year, month)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary and fallback feeds both failed: primary=%w, fallback=%v", err, fallbackErr)
	}
	return events, nil
}
