// Package lookup talks to the external registries used to fill forms: the
// CPF/CNPJ registry and the ViaCEP postal code service.
//
// Every call returns a Result, which is one of Person, Entity, Address,
// NotFound or Failure. Callers switch on the concrete type.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evidenceledger/docgen/internal/cache"
	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// DefaultPostalURL is the ViaCEP endpoint.
const DefaultPostalURL = "https://viacep.com.br/ws"

// ErrNotConfigured is carried by a Failure when the registry URL is empty.
var ErrNotConfigured = errors.New("identifier registry not configured")

// Result is the outcome of a lookup.
type Result interface {
	isResult()
}

// Person is a natural person found by CPF.
type Person struct {
	Name       string
	BirthDate  string
	FatherName string
	MotherName string
	GovID      string
	Address    *Address
}

// Entity is a company found by CNPJ.
type Entity struct {
	Name    string
	Address *Address
}

// Address is a postal address. Complement carries the district (bairro).
type Address struct {
	Street     string
	Complement string
	City       string
	State      string
	PostalCode string
}

// NotFound means the service answered but knows nothing about the query.
type NotFound struct {
	Query string
}

// Failure is a transport error or an unexpected status code.
type Failure struct {
	Status int
	Body   string
	Err    error
}

func (Person) isResult()   {}
func (Entity) isResult()   {}
func (Address) isResult()  {}
func (NotFound) isResult() {}
func (Failure) isResult()  {}

func (f Failure) Error() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	return fmt.Sprintf("status %d: %s", f.Status, f.Body)
}

// Options configures a Client.
type Options struct {
	// BaseURL of the CPF/CNPJ registry. Empty disables identifier lookups.
	BaseURL string
	// PostalURL defaults to DefaultPostalURL.
	PostalURL string
	Timeout   time.Duration
	// RateLimit is the minimum interval between outbound calls. Zero means no limit.
	RateLimit time.Duration
	// Cache keeps successful and not-found answers. Nil disables caching.
	Cache    *cache.Cache
	CacheTTL time.Duration
}

// Client performs lookups against the registries.
type Client struct {
	baseURL   string
	postalURL string
	http      *http.Client
	limiter   *rate.Limiter
	cache     *cache.Cache
	cacheTTL  time.Duration
}

// New creates a lookup client.
func New(opts Options) *Client {
	if opts.PostalURL == "" {
		opts.PostalURL = DefaultPostalURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Every(opts.RateLimit)
	}
	return &Client{
		baseURL:   opts.BaseURL,
		postalURL: opts.PostalURL,
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
	}
}

// cached runs fetch unless a previous answer for key is still in the cache.
// Failures are never cached.
func (c *Client) cached(key string, fetch func() Result) Result {
	if c.cache != nil {
		if v, found := c.cache.Get("lookup:" + key); found {
			return v.(Result)
		}
	}
	r := fetch()
	if _, failed := r.(Failure); !failed && c.cache != nil {
		c.cache.Set("lookup:"+key, r, c.cacheTTL)
	}
	return r
}

// get performs a rate-limited GET and decodes a 200 answer into out. A 404
// gives found=false without error.
func (c *Client) get(ctx context.Context, url string, out any) (found bool, fail *Failure) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, &Failure{Err: errl.Errorf("rate limit wait failed: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &Failure{Err: errl.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &Failure{Err: errl.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, &Failure{Status: resp.StatusCode, Err: errl.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("lookup failed", "url", url, "status", resp.StatusCode)
		return false, &Failure{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, &Failure{Status: resp.StatusCode, Body: string(body), Err: errl.Errorf("failed to decode response: %w", err)}
	}
	return true, nil
}
