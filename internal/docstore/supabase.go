package docstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"MarginSight/internal/analysis"
)

// Client downloads source documents from a Supabase storage bucket.
type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// NewClientFromEnv builds a client from SUPABASE_URL, SUPABASE_BUCKET
// and SUPABASE_SERVICE_ROLE_KEY. Values are trimmed of accidental
// quoting left by some .env loaders.
func NewClientFromEnv() (*Client, error) {
	baseURL := strings.Trim(os.Getenv("SUPABASE_URL"), "\"")
	serviceKey := strings.Trim(os.Getenv("SUPABASE_SERVICE_ROLE_KEY"), "\"")
	bucket := strings.Trim(os.Getenv("SUPABASE_BUCKET"), "\"")
	if baseURL == "" || bucket == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase configuration missing; set SUPABASE_URL, SUPABASE_BUCKET and SUPABASE_SERVICE_ROLE_KEY")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// NewClient is used by tests to point at a stub server.
func NewClient(baseURL, serviceKey, bucket string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads one object: GET /storage/v1/object/{bucket}/{path}.
// Object paths may be nested, so each segment is escaped on its own.
func (c *Client) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	segments := strings.Split(strings.TrimLeft(objectPath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.Join(segments, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("supabase download failed for %s: %d %s", objectPath, resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// FetchAll downloads the five source documents concurrently; they are
// independent reads. The first error wins and names the document kind.
func (c *Client) FetchAll(ctx context.Context, refs analysis.DocumentRefs) (*analysis.DocumentSet, error) {
	type target struct {
		kind string
		path string
		dest *analysis.Document
	}
	set := &analysis.DocumentSet{}
	targets := []target{
		{analysis.DocProForma, refs.ProForma, &set.ProForma},
		{analysis.DocCompensation, refs.Compensation, &set.Compensation},
		{analysis.DocHours, refs.Hours, &set.Hours},
		{analysis.DocExpenses, refs.Expenses, &set.Expenses},
		{analysis.DocProfitLoss, refs.ProfitLoss, &set.ProfitLoss},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			data, err := c.Fetch(ctx, t.path)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", t.kind, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			t.dest.Path = t.path
			t.dest.Data = data
		}(t)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return set, nil
}
