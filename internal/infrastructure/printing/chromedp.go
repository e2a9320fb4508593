package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	// receipts are 56 columns of monospace text; 80mm roll paper fits them at 9pt
	receiptPaperWidthMM = 80.0
	receiptMarginMM     = 4.0
)

// ChromedpRenderer renders receipts with the Chrome DevTools Protocol
type ChromedpRenderer struct {
	timeout     time.Duration
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// New returns a chromedp renderer, or DisabledRenderer when printing is off
func New(cfg config.PrintingConfig, logger *zap.Logger) ReceiptRenderer {
	if !cfg.Enabled {
		return DisabledRenderer{}
	}
	return NewChromedpRenderer(cfg, logger)
}

// NewChromedpRenderer connects to cfg.RemoteURL when set, otherwise it
// launches a local headless browser on first use.
func NewChromedpRenderer(cfg config.PrintingConfig, logger *zap.Logger) *ChromedpRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ChromedpRenderer{
		timeout: cfg.Timeout,
		logger:  logger.Named("printing"),
	}
	if r.timeout <= 0 {
		r.timeout = defaultChromeTimeout
	}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg.NoSandbox)...)
	return r
}

func allocatorOptions(noSandbox bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// RenderReceiptPDF prints the receipt text, monospaced and unwrapped, to a single tall page
func (r *ChromedpRenderer) RenderReceiptPDF(ctx context.Context, title, text string) (*RenderResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewRenderError(ErrCodeEmptyReceipt, "receipt text is empty", nil)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// chromedp ties the browser lifetime to browserCtx; cancel it when the caller's deadline passes
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	document := receiptHTML(title, text)
	lines := strings.Count(text, "\n") + 1

	var pdfData []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, document).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(receiptPaperWidthMM)).
				WithPaperHeight(receiptPaperHeightInches(lines)).
				WithMarginTop(mmToInches(receiptMarginMM)).
				WithMarginBottom(mmToInches(receiptMarginMM)).
				WithMarginLeft(mmToInches(receiptMarginMM)).
				WithMarginRight(mmToInches(receiptMarginMM)).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("PDF rendering timed out after %v", r.timeout), err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	result := &RenderResult{
		PDFData:        pdfData,
		PageCount:      estimatePageCount(pdfData),
		RenderDuration: time.Since(start),
	}
	r.logger.Info("Receipt PDF rendered",
		zap.Int("bytes", len(pdfData)),
		zap.Duration("duration", result.RenderDuration))
	return result, nil
}

// Close releases the browser allocator
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func receiptHTML(title, text string) string {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html><html><head><meta charset=\"UTF-8\">")
	if title != "" {
		buf.WriteString("<title>" + html.EscapeString(title) + "</title>")
	}
	buf.WriteString("<style>body{margin:0}pre{font-family:'DejaVu Sans Mono','Courier New',monospace;")
	buf.WriteString("font-size:9pt;line-height:1.25;white-space:pre;margin:0}</style>")
	buf.WriteString("</head><body><pre>")
	buf.WriteString(html.EscapeString(text))
	buf.WriteString("</pre></body></html>")
	return buf.String()
}

// receiptPaperHeightInches sizes the page to the text so the receipt prints on one page
func receiptPaperHeightInches(lines int) float64 {
	const lineHeightInches = 9.0 * 1.25 / 72
	h := float64(lines)*lineHeightInches + 2*mmToInches(receiptMarginMM) + 0.25
	if minH := mmToInches(100); h < minH {
		return minH
	}
	return h
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// estimatePageCount counts "/Type /Page" objects, excluding the "/Pages" tree node
func estimatePageCount(pdf []byte) int {
	count := bytes.Count(pdf, []byte("/Type /Page")) - bytes.Count(pdf, []byte("/Type /Pages"))
	count += bytes.Count(pdf, []byte("/Type/Page")) - bytes.Count(pdf, []byte("/Type/Pages"))
	if count < 1 {
		return 1
	}
	return count
}

var (
	_ ReceiptRenderer = (*ChromedpRenderer)(nil)
	_ ReceiptRenderer = DisabledRenderer{}
)
