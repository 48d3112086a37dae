// Package followup opens the post-enrollment form once an enroll request settles.
package followup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/enrollment/domain"
)

// Opener shows a URL to the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenFormHook returns an after-settle hook that opens formURL for every settled request,
// success or failure. Open errors are logged and dropped.
func OpenFormHook(opener Opener, formURL string) domain.AfterSettleHook {
	return func(ctx context.Context, outcome domain.Outcome) {
		if opener == nil || formURL == "" {
			return
		}
		if err := opener.Open(ctx, formURL); err != nil {
			log.Warn().Err(err).Str("batch_id", outcome.Intent.BatchID).Msg("followup: could not open form")
		}
	}
}

// BrowserOpener launches the platform's default browser.
type BrowserOpener struct {
	// command builds the launcher; nil means the platform default.
	command func(ctx context.Context, url string) *exec.Cmd
}

// NewBrowserOpener returns an opener using xdg-open, open or rundll32 depending on the OS.
func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{command: browserCommand(runtime.GOOS)}
}

func browserCommand(goos string) func(ctx context.Context, url string) *exec.Cmd {
	return func(ctx context.Context, url string) *exec.Cmd {
		switch goos {
		case "darwin":
			return exec.CommandContext(ctx, "open", url)
		case "windows":
			return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
		default:
			return exec.CommandContext(ctx, "xdg-open", url)
		}
	}
}

// Open starts the browser and does not wait for it to exit.
func (b *BrowserOpener) Open(ctx context.Context, url string) error {
	cmd := b.command(ctx, url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// PrintOpener writes the URL for the user to follow. It backs the browser on headless hosts.
type PrintOpener struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrintOpener returns an opener that prints to w.
func NewPrintOpener(w io.Writer) *PrintOpener {
	return &PrintOpener{w: w}
}

func (p *PrintOpener) Open(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "Please complete the follow-up form: %s\n", url)
	return err
}

type fallbackOpener struct {
	primary, secondary Opener
}

// WithFallback returns an opener that tries primary and, when it fails, secondary.
// The browser on a headless host falls back to printing the URL this way.
func WithFallback(primary, secondary Opener) Opener {
	return &fallbackOpener{primary: primary, secondary: secondary}
}

func (f *fallbackOpener) Open(ctx context.Context, url string) error {
	err := f.primary.Open(ctx, url)
	if err == nil {
		return nil
	}
	log.Debug().Err(err).Msg("followup: primary opener failed, falling back")
	if ferr := f.secondary.Open(ctx, url); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}
