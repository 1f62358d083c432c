// Package sheets writes entries to spreadsheets: a Google Sheets document through the
// Sheets v4 API or a local .xlsx workbook. Both read the Unique ID column back as prior state.
package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/hyperjump/digest/internal/models"
)

const (
	valueInputRaw   = "RAW"
	insertDataRows  = "INSERT_ROWS"
	headerRangeCols = "A1:I1"
	uniqueIDRange   = "H:H"
	appendRange     = "A:I"
)

// Client is a Google Sheets sink and prior-state reader.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	limiter       *RateLimiter
	logger        *zap.Logger
	apiOpts       []option.ClientOption
	headersReady  bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimiter replaces the default request pacing.
func WithRateLimiter(r *RateLimiter) Option {
	return func(c *Client) {
		if r != nil {
			c.limiter = r
		}
	}
}

// WithAPIOptions passes options through to the Sheets service, such as a token source or endpoint.
func WithAPIOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.apiOpts = append(c.apiOpts, opts...)
	}
}

// NewClient creates a client for one sheet of a spreadsheet.
func NewClient(ctx context.Context, spreadsheetID, sheetName string, opts ...Option) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	c := &Client{
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		limiter:       NewRateLimiter(1),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	svc, err := sheets.NewService(ctx, c.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	c.svc = svc
	return c, nil
}

// Name identifies the sink in publish warnings.
func (c *Client) Name() string {
	return "google-sheets"
}

// URL returns the browser URL of the spreadsheet.
func (c *Client) URL() string {
	return SpreadsheetURL(c.spreadsheetID)
}

// SpreadsheetURL returns the browser URL for a spreadsheet id.
func SpreadsheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id
}

func (c *Client) rangeOf(cells string) string {
	return c.sheetName + "!" + cells
}

// EnsureHeaders writes the header row when the first row of the sheet is empty.
func (c *Client) EnsureHeaders(ctx context.Context) error {
	if c.headersReady {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rangeOf(headerRangeCols)).Context(ctx).Do()
	if err != nil {
		return c.wrap("read headers", err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		vr := &sheets.ValueRange{Values: [][]interface{}{toRow(models.Headers)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rangeOf(headerRangeCols), vr).
			ValueInputOption(valueInputRaw).Context(ctx).Do(); err != nil {
			return c.wrap("write headers", err)
		}
		c.logger.Info("wrote sheet headers", zap.String("sheet", c.sheetName))
	}
	c.headersReady = true
	return nil
}

// KnownIDs returns the values of the Unique ID column, header excluded.
func (c *Client) KnownIDs(ctx context.Context) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rangeOf(uniqueIDRange)).Context(ctx).Do()
	if err != nil {
		return nil, c.wrap("read unique ids", err)
	}
	var ids []string
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if id := fmt.Sprint(row[0]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// WriteEntries appends one row per entry below the existing data.
func (c *Client) WriteEntries(ctx context.Context, entries []models.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := c.EnsureHeaders(ctx); err != nil {
		return 0, err
	}
	values := make([][]interface{}, 0, len(entries))
	for i := range entries {
		values = append(values, toRow(entries[i].Row()))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rangeOf(appendRange), &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataRows).
		Context(ctx).Do()
	if err != nil {
		return 0, c.wrap("append rows", err)
	}
	written := len(entries)
	if resp.Updates != nil && resp.Updates.UpdatedRows > 0 {
		written = int(resp.Updates.UpdatedRows)
	}
	c.logger.Debug("appended rows", zap.String("sheet", c.sheetName), zap.Int("rows", written))
	return written, nil
}

func (c *Client) wrap(op string, err error) error {
	if IsRateLimited(err) {
		d := c.limiter.RecordRateLimitError(RetryAfter(err))
		c.logger.Warn("sheets rate limited", zap.String("op", op), zap.Duration("backoff", d))
	}
	return fmt.Errorf("%s: %w", op, WrapError(err))
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, v := range cells {
		row[i] = v
	}
	return row
}
