// Package probe checks the dashboard's one externally observable contract:
// the text rendered after the "Nix Version" label on /info must be
// non-empty and must equal the version served by /api/data/nix-info.
//
// The page is read through a PageReader so the same checks run against
// static HTML (HTTPPage) and against a real browser (testutil.BrowserClient).
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/thesyncim/nixbrowser/pkg/nix"
)

const (
	// InfoPath is the page rendering the Nix version.
	InfoPath = "/info"
	// NixInfoAPIPath is the JSON endpoint serving nix.Info.
	NixInfoAPIPath = "/api/data/nix-info"
	// VersionLabel is the text of the element preceding the version.
	VersionLabel = "Nix Version"
)

var (
	// ErrAPINotOK is returned when the API answers with a non-2xx status.
	ErrAPINotOK = errors.New("probe: nix-info API response not OK")
	// ErrEmptyVersion is returned when the page renders no version text.
	ErrEmptyVersion = errors.New("probe: rendered nix version is empty")
	// ErrVersionMismatch is returned when page and API disagree.
	ErrVersionMismatch = errors.New("probe: rendered nix version does not match API")
	// ErrLabelNotFound is returned by PageReaders when the label or its
	// sibling is missing.
	ErrLabelNotFound = errors.New("probe: label not found")
)

// MismatchError carries both sides of a failed comparison.
type MismatchError struct {
	Rendered string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: rendered %q, API says %q", ErrVersionMismatch, e.Rendered, e.Expected)
}

// Unwrap makes errors.Is(err, ErrVersionMismatch) hold.
func (e *MismatchError) Unwrap() error {
	return ErrVersionMismatch
}

// PageReader loads a page and returns the text of the element that
// immediately follows the element whose text is label.
type PageReader interface {
	TextAfterLabel(ctx context.Context, url, label string) (string, error)
}

// Mode selects how strict Check is.
type Mode int

const (
	// ModeNonEmpty only requires the rendered version to be non-empty.
	ModeNonEmpty Mode = iota
	// ModeExact requires the rendered version to equal the API version.
	ModeExact
)

// String returns a string representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeNonEmpty:
		return "non-empty"
	case ModeExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Prober runs the checks against a dashboard at BaseURL.
type Prober struct {
	BaseURL string
	Page    PageReader
	Client  *http.Client
}

// New creates a Prober. A nil client gets a 30s timeout client.
func New(baseURL string, page PageReader, client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Prober{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Page:    page,
		Client:  client,
	}
}

// Result is what a successful Check observed.
type Result struct {
	Mode     Mode
	Rendered string
	// Expected is only set in ModeExact.
	Expected string
}

// RenderedVersion reads the version text from the info page.
func (p *Prober) RenderedVersion(ctx context.Context) (string, error) {
	text, err := p.Page.TextAfterLabel(ctx, p.BaseURL+InfoPath, VersionLabel)
	if err != nil {
		return "", fmt.Errorf("probe: read %s: %w", InfoPath, err)
	}
	return strings.TrimSpace(text), nil
}

// APIInfo fetches and decodes the nix-info endpoint.
func (p *Prober) APIInfo(ctx context.Context) (*nix.Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+NixInfoAPIPath, nil)
	if err != nil {
		return nil, fmt.Errorf("probe: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: GET %s: %w", NixInfoAPIPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrAPINotOK, NixInfoAPIPath, resp.Status)
	}

	var info nix.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("probe: decode %s: %w", NixInfoAPIPath, err)
	}
	return &info, nil
}

// Check reads the rendered version and validates it according to mode. In
// ModeExact the page is read first and the API second; an API failure is
// reported as ErrAPINotOK whatever the page showed, including no version at
// all.
func (p *Prober) Check(ctx context.Context, mode Mode) (*Result, error) {
	rendered, renderErr := p.RenderedVersion(ctx)
	res := &Result{Mode: mode, Rendered: rendered}

	if mode == ModeNonEmpty {
		if renderErr != nil {
			return nil, renderErr
		}
		if rendered == "" {
			return nil, ErrEmptyVersion
		}
		return res, nil
	}

	info, err := p.APIInfo(ctx)
	if err != nil {
		return nil, err
	}
	if renderErr != nil {
		return nil, renderErr
	}
	res.Expected = info.NixVersion.String()

	if err := Compare(rendered, info.NixVersion); err != nil {
		return nil, err
	}
	return res, nil
}

// Compare applies the oracle to an already-read string.
func Compare(rendered string, v nix.Version) error {
	if rendered == "" {
		return ErrEmptyVersion
	}
	if want := v.String(); rendered != want {
		return &MismatchError{Rendered: rendered, Expected: want}
	}
	return nil
}
