package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	DefaultLoginURL = "https://portal.nycu.edu.tw/#/login?redirect=%2F"
	DefaultLinksURL = "https://portal.nycu.edu.tw/#/links/nycu"
	DefaultTimeout  = 2 * time.Minute

	selectorTimeout = 3 * time.Second
	stepTimeout     = 10 * time.Second
	pollInterval    = 500 * time.Millisecond

	folderLabel     = "我的文件夾"
	submenuID       = "cmSubMenuID1"
	attendanceEntry = "受僱者線上簽到退"
	confirmSelector = "input#ContentPlaceHolder1_Button_attend"
)

// Links to the time clock system, tried in order
var timeClockSelectors = []string{
	"a[href='#/redirect/timeClock']",
	"a[title*='人事差勤系統']",
	"a[title*='工時核定']",
}

const timeClockXPath = "//a[contains(text(), '人事差勤系統') or contains(@title, '人事差勤系統')]"

// Options configures the portal client
type Options struct {
	Username string
	Password string
	LoginURL string
	LinksURL string
	Headless bool
	Timeout  time.Duration
	// DryRun walks the whole flow but does not press the final confirm button
	DryRun bool
}

type action struct {
	name   string
	button string
	err    error
}

var (
	signIn  = action{name: "check-in", button: "簽到SignIn", err: ErrSignIn}
	signOut = action{name: "check-out", button: "簽退SignOut", err: ErrSignOut}
)

// Client performs attendance actions on the university portal with a
// headless Chromium. Each action starts and releases its own browser.
type Client struct {
	opts   Options
	logger *zap.Logger
}

// NewClient creates a new portal client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.LoginURL == "" {
		opts.LoginURL = DefaultLoginURL
	}
	if opts.LinksURL == "" {
		opts.LinksURL = DefaultLinksURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		opts:   opts,
		logger: logger,
	}
}

// CheckIn presses the sign-in button of the time clock system
func (c *Client) CheckIn(ctx context.Context) error {
	return c.perform(ctx, signIn)
}

// CheckOut presses the sign-out button of the time clock system
func (c *Client) CheckOut(ctx context.Context) error {
	return c.perform(ctx, signOut)
}

func (c *Client) perform(ctx context.Context, act action) error {
	if c.opts.Username == "" || c.opts.Password == "" {
		return fmt.Errorf("%w: username and password must be configured", ErrCredentials)
	}

	start := time.Now()
	c.logger.Info("Starting portal action",
		zap.String("action", act.name),
		zap.Bool("dry_run", c.opts.DryRun))

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(c.logger.Sugar().Debugf),
		chromedp.WithErrorf(c.logger.Sugar().Debugf),
	)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, c.opts.Timeout)
	defer cancelTimeout()

	if err := c.login(browserCtx); err != nil {
		return err
	}

	tabCtx, cancelTab, err := c.openTimeClock(browserCtx)
	if err != nil {
		return err
	}
	defer cancelTab()

	if err := c.openAttendancePage(tabCtx); err != nil {
		return err
	}

	if err := c.pressButton(tabCtx, act); err != nil {
		return err
	}

	if err := c.confirm(tabCtx, act); err != nil {
		return err
	}

	c.logger.Info("Portal action completed",
		zap.String("action", act.name),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) login(ctx context.Context) error {
	c.logger.Debug("Logging in to portal", zap.String("url", c.opts.LoginURL))

	var redirected bool
	err := chromedp.Run(ctx,
		chromedp.Navigate(c.opts.LoginURL),
		chromedp.WaitVisible("#account", chromedp.ByQuery),
		chromedp.SendKeys("#account", c.opts.Username, chromedp.ByQuery),
		chromedp.SendKeys("#password", c.opts.Password, chromedp.ByQuery),
		chromedp.Click("input.login[type='submit']", chromedp.ByQuery),
		chromedp.Poll(
			fmt.Sprintf("window.location.href !== %q", c.opts.LoginURL),
			&redirected,
			chromedp.WithPollingInterval(pollInterval),
			chromedp.WithPollingTimeout(stepTimeout),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	c.logger.Info("Logged in to portal")

	if err := chromedp.Run(ctx,
		chromedp.Navigate(c.opts.LinksURL),
		chromedp.Sleep(time.Second),
	); err != nil {
		return fmt.Errorf("%w: failed to open links page: %v", ErrLogin, err)
	}
	return nil
}

// openTimeClock clicks the time clock link and attaches to the tab it opens
func (c *Client) openTimeClock(ctx context.Context) (context.Context, context.CancelFunc, error) {
	selector, by, err := c.findTimeClockLink(ctx)
	if err != nil {
		return nil, nil, err
	}

	newTab := chromedp.WaitNewTarget(ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != ""
	})

	if err := chromedp.Run(ctx, chromedp.Click(selector, by)); err != nil {
		return nil, nil, fmt.Errorf("%w: click %s: %v", ErrTimeClock, selector, err)
	}

	var targetID target.ID
	select {
	case targetID = <-newTab:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: new window did not open: %v", ErrTimeClock, ctx.Err())
	}

	tabCtx, cancel := chromedp.NewContext(ctx, chromedp.WithTargetID(targetID))

	var url string
	if err := chromedp.Run(tabCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.Location(&url),
	); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %v", ErrTimeClock, err)
	}

	c.logger.Info("Time clock system opened", zap.String("url", url))
	return tabCtx, cancel, nil
}

func (c *Client) findTimeClockLink(ctx context.Context) (string, chromedp.QueryOption, error) {
	candidates := make([]string, 0, len(timeClockSelectors)+1)
	candidates = append(candidates, timeClockSelectors...)
	candidates = append(candidates, timeClockXPath)

	for _, sel := range candidates {
		by := chromedp.ByQuery
		if strings.HasPrefix(sel, "//") {
			by = chromedp.BySearch
		}

		waitCtx, cancel := context.WithTimeout(ctx, selectorTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, by))
		cancel()
		if err == nil {
			c.logger.Debug("Found time clock link", zap.String("selector", sel))
			return sel, by, nil
		}
		if ctx.Err() != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrTimeClock, ctx.Err())
		}
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err == nil {
		if len(html) > 1000 {
			html = html[:1000] + "..."
		}
		c.logger.Debug("Links page source", zap.String("html", html))
	}
	return "", nil, fmt.Errorf("%w: time clock system link", ErrElementNotFound)
}

// openAttendancePage reveals the folder menu and opens the online sign-in
// entry. Both live inside frames of the time clock system.
func (c *Client) openAttendancePage(ctx context.Context) error {
	var revealed bool
	if err := chromedp.Run(ctx, chromedp.Poll(
		revealMenuScript(folderLabel, submenuID),
		&revealed,
		chromedp.WithPollingInterval(pollInterval),
		chromedp.WithPollingTimeout(stepTimeout),
	)); err != nil {
		return fmt.Errorf("%w: %w: folder menu %q: %v", ErrNavigation, ErrElementNotFound, folderLabel, err)
	}
	c.logger.Debug("Folder menu revealed")

	var clicked bool
	if err := chromedp.Run(ctx,
		chromedp.Poll(
			clickScript("#"+submenuID+"Table td", attendanceEntry),
			&clicked,
			chromedp.WithPollingInterval(pollInterval),
			chromedp.WithPollingTimeout(stepTimeout),
		),
		chromedp.Sleep(time.Second),
	); err != nil {
		return fmt.Errorf("%w: %w: menu entry %q: %v", ErrNavigation, ErrElementNotFound, attendanceEntry, err)
	}

	c.logger.Info("Attendance page opened")
	return nil
}

func (c *Client) pressButton(ctx context.Context, act action) error {
	var clicked bool
	if err := chromedp.Run(ctx,
		chromedp.Poll(
			clickScript("a.input-button", act.button),
			&clicked,
			chromedp.WithPollingInterval(pollInterval),
			chromedp.WithPollingTimeout(stepTimeout),
		),
		chromedp.Sleep(time.Second),
	); err != nil {
		return fmt.Errorf("%w: button %q: %v", act.err, act.button, err)
	}

	c.logger.Debug("Attendance button pressed", zap.String("button", act.button))
	return nil
}

func (c *Client) confirm(ctx context.Context, act action) error {
	script := clickScript(confirmSelector, "")
	if c.opts.DryRun {
		script = existsScript(confirmSelector, "")
	}

	var ok bool
	if err := chromedp.Run(ctx, chromedp.Poll(
		script,
		&ok,
		chromedp.WithPollingInterval(pollInterval),
		chromedp.WithPollingTimeout(stepTimeout),
	)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfirmation, act.name, err)
	}

	if c.opts.DryRun {
		c.logger.Info("Dry run: confirm button found but not pressed", zap.String("action", act.name))
		return nil
	}

	c.logger.Debug("Confirm button pressed")
	return nil
}
