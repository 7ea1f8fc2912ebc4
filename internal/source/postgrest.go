package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"amdash/internal/config"
	"amdash/internal/engine"
	"amdash/internal/models"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

var errorMessage = jp.MustParseString("$.message")

// PostgREST reads datasets from a PostgREST endpoint such as the Supabase
// REST API. Coarse filters become query operators.
type PostgREST struct {
	base   *url.URL
	apiKey string
	client *http.Client
	log    *zap.Logger
}

func NewPostgREST(baseURL, apiKey string, client *http.Client, log *zap.Logger) (*PostgREST, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("postgrest url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("postgrest url %q: scheme must be http or https", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PostgREST{base: u, apiKey: apiKey, client: client, log: log}, nil
}

func (s *PostgREST) Backend() string { return config.SourcePostgREST }

func (s *PostgREST) Fetch(ctx context.Context, q Query) (*models.RecordSet, error) {
	params, local, err := restParams(q)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	u := s.base.JoinPath("rest", "v1", q.Dataset.Table)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	s.log.Debug("postgrest request", zap.String("dataset", q.Dataset.Name), zap.String("query", u.RawQuery))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fetchErr(q, s.Backend(), resp.StatusCode, errors.New(upstreamMessage(resp.Status, body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	doc, err := oj.Parse(body)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, fmt.Errorf("decode response: %w", err))
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, fetchErr(q, s.Backend(), 0, fmt.Errorf("response is %T, not an array", doc))
	}
	records, err := decodeRecords(items, q.Dataset.Schema)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	if !local.IsZero() {
		preds, err := engine.CompileFilters(q.Dataset.Schema, local.AsFilters())
		if err != nil {
			return nil, fetchErr(q, s.Backend(), 0, err)
		}
		records = engine.Select(records, preds...)
	}
	return &models.RecordSet{Dataset: q.Dataset.Name, Records: records, FetchedAt: time.Now()}, nil
}

// upstreamMessage prefers the "message" member of a PostgREST error body.
func upstreamMessage(status string, body []byte) string {
	if doc, err := oj.Parse(body); err == nil {
		for _, m := range errorMessage.Get(doc) {
			if s, ok := m.(string); ok && s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
		return s
	}
	return status
}

// restParams builds the PostgREST query string. Membership on a field with
// a normaliser cannot be pushed: the upstream rows hold the raw spellings.
// Those filters come back as local and are applied to the decoded records.
func restParams(q Query) (params url.Values, local CoarseFilter, err error) {
	ds := q.Dataset
	if err := q.Coarse.Validate(ds); err != nil {
		return nil, local, err
	}
	params = url.Values{}
	params.Set("select", "*")
	for _, k := range slices.Sorted(maps.Keys(q.Coarse.In)) {
		vals := q.Coarse.In[k]
		if len(vals) == 0 {
			continue
		}
		if f, _ := ds.Schema.Field(k); f.Normalize != nil {
			if local.In == nil {
				local.In = make(map[string][]string)
			}
			local.In[k] = vals
			continue
		}
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = restLiteral(strings.TrimSpace(v))
		}
		params.Add(k, "in.("+strings.Join(quoted, ",")+")")
	}
	for _, k := range slices.Sorted(maps.Keys(q.Coarse.Ranges)) {
		r := q.Coarse.Ranges[k]
		if r.Min != nil {
			params.Add(k, "gte."+formatFloat(*r.Min))
		}
		if r.Max != nil {
			params.Add(k, "lte."+formatFloat(*r.Max))
		}
	}
	if key := ds.DefaultSort.Key; key.Field != "" {
		params.Set("order", key.Field+"."+key.Dir.String()+".nullslast")
	}
	params.Set("limit", strconv.Itoa(q.limit()))
	return params, local, nil
}

// restLiteral double-quotes a value for an in.() list, escaping quotes and
// backslashes.
func restLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
