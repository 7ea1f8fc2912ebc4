package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newREST(t *testing.T, h http.HandlerFunc) *PostgREST {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	src, err := NewPostgREST(srv.URL+"/", "anon-key", srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return src
}

func TestPostgREST_Fetch(t *testing.T) {
	src := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/companies", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, []string{`in.("Polymer","Say \"hi\"")`}, q["segment"])
		assert.Equal(t, []string{"gte.100", "lte.2500.5"}, q["printer_count"])
		assert.Equal(t, "name.asc.nullslast", q.Get("order"))
		assert.Equal(t, "10000", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"c3","name":"Formlabs","country":"US","segment":"Polymer","technologies":"SLA","printer_count":1000}]`))
	})

	rs, err := src.Fetch(context.Background(), Query{
		Dataset: companies(t),
		Coarse: CoarseFilter{
			In:     map[string][]string{"segment": {"Polymer", `Say "hi"`}},
			Ranges: map[string]NumRange{"printer_count": {Min: ptr(100), Max: ptr(2500.5)}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "United States", rs.Records[0].Get("country").Text())
	assert.Equal(t, []string{"SLA"}, rs.Records[0].Get("technologies").Items())
}

// Upstream rows hold raw country spellings, so country membership is
// matched after normalising both sides.
func TestPostgREST_FetchNormalisedMembershipLocally(t *testing.T) {
	src := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Empty(t, q["country"])
		assert.Equal(t, []string{`in.("Metal")`}, q["segment"])
		w.Write([]byte(`[
			{"id":"c1","name":"Desktop Metal","country":"USA","segment":"Metal"},
			{"id":"c2","name":"EOS","country":"Germany","segment":"Metal"},
			{"id":"c3","name":"Velo3D","country":"U.S.","segment":"Metal"}
		]`))
	})

	rs, err := src.Fetch(context.Background(), Query{
		Dataset: companies(t),
		Coarse: CoarseFilter{In: map[string][]string{
			"country": {"US"},
			"segment": {"Metal"},
		}},
	})
	require.NoError(t, err)
	var names []string
	for _, r := range rs.Records {
		names = append(names, r.Get("name").Text())
	}
	assert.Equal(t, []string{"Desktop Metal", "Velo3D"}, names)
}

func TestPostgREST_EmptyIsNotAnError(t *testing.T) {
	src := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	rs, err := src.Fetch(context.Background(), Query{Dataset: companies(t)})
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
	assert.NotNil(t, rs.Records)
}

func TestPostgREST_Errors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    int
		message string
	}{
		{"upstream message", http.StatusNotFound, `{"code":"42P01","message":"relation \"public.companies\" does not exist"}`, 404, `relation "public.companies" does not exist`},
		{"plain body", http.StatusBadGateway, "upstream down", 502, "upstream down"},
		{"not an array", http.StatusOK, `{"id":1}`, 0, "not an array"},
		{"garbage", http.StatusOK, `[{`, 0, "decode response"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := newREST(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				w.Write([]byte(c.body))
			})
			_, err := src.Fetch(context.Background(), Query{Dataset: companies(t)})
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, c.code, fe.Status)
			assert.Contains(t, fe.Error(), c.message)
		})
	}
}

func TestNewPostgREST_RejectsBadURL(t *testing.T) {
	_, err := NewPostgREST("ftp://example.com", "", nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}
