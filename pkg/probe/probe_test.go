package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/thesyncim/nixbrowser/pkg/nix"
)

const infoPage = `<!DOCTYPE html>
<html><body>
<div class="flex flex-col">
  <div>
    <b>Nix Version</b>
    <div class="p-1 my-1 rounded bg-primary-50">%s</div>
  </div>
  <div><b>Nix Config</b><table></table></div>
</div>
</body></html>`

// dashboard fakes the two routes the prober talks to.
func dashboard(t *testing.T, rendered string, apiStatus int, apiBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, infoPage, rendered)
	})
	mux.HandleFunc("/api/data/nix-info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiStatus)
		_, _ = w.Write([]byte(apiBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const api2181 = `{"nix_version": {"major": 2, "minor": 18, "patch": 1}, "nix_config": {}}`

func TestCheck_ExactMatch(t *testing.T) {
	srv := dashboard(t, "2.18.1", http.StatusOK, api2181)
	p := New(srv.URL, HTTPPage{Client: srv.Client()}, srv.Client())

	res, err := p.Check(context.Background(), ModeExact)
	require.NoError(t, err)
	assert.Equal(t, "2.18.1", res.Rendered)
	assert.Equal(t, "2.18.1", res.Expected)
}

func TestCheck_Mismatch(t *testing.T) {
	srv := dashboard(t, "2.18.0", http.StatusOK, api2181)
	p := New(srv.URL, HTTPPage{}, nil)

	_, err := p.Check(context.Background(), ModeExact)
	require.ErrorIs(t, err, ErrVersionMismatch)

	var mm *MismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, "2.18.0", mm.Rendered)
	assert.Equal(t, "2.18.1", mm.Expected)
}

func TestCheck_APIFailureWinsOverRenderedText(t *testing.T) {
	// Whatever the page shows, a 500 from the API fails the probe.
	for _, rendered := range []string{"2.18.1", "", "garbage"} {
		srv := dashboard(t, rendered, http.StatusInternalServerError, `{"error":"nix not found"}`)
		p := New(srv.URL, HTTPPage{}, nil)

		_, err := p.Check(context.Background(), ModeExact)
		assert.ErrorIs(t, err, ErrAPINotOK, "rendered %q", rendered)
		assert.Contains(t, err.Error(), "500")
	}
}

func TestCheck_APIFailureWinsOverMissingLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<html><body><pre>nix: command not found</pre></body></html>`)
	})
	mux.HandleFunc("/api/data/nix-info", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nix: command not found"}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(srv.URL, HTTPPage{}, nil)

	_, err := p.Check(context.Background(), ModeExact)
	assert.ErrorIs(t, err, ErrAPINotOK)

	_, err = p.Check(context.Background(), ModeNonEmpty)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAPINotOK)
}

func TestCheck_NonEmpty(t *testing.T) {
	srv := dashboard(t, "2.18.1", http.StatusInternalServerError, "")
	p := New(srv.URL, HTTPPage{}, nil)

	res, err := p.Check(context.Background(), ModeNonEmpty)
	require.NoError(t, err, "non-empty mode never queries the API")
	assert.Equal(t, "2.18.1", res.Rendered)
	assert.Empty(t, res.Expected)
}

func TestCheck_EmptyRendered(t *testing.T) {
	srv := dashboard(t, "   ", http.StatusOK, api2181)
	p := New(srv.URL, HTTPPage{}, nil)

	_, err := p.Check(context.Background(), ModeNonEmpty)
	assert.ErrorIs(t, err, ErrEmptyVersion)

	_, err = p.Check(context.Background(), ModeExact)
	assert.ErrorIs(t, err, ErrEmptyVersion)
}

func TestCheck_BadAPIBody(t *testing.T) {
	srv := dashboard(t, "2.18.1", http.StatusOK, "not json")
	p := New(srv.URL, HTTPPage{}, nil)

	_, err := p.Check(context.Background(), ModeExact)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAPINotOK)
}

func TestCompare(t *testing.T) {
	for _, v := range []nix.Version{{}, {Major: 2, Minor: 18, Patch: 1}, {Major: 10, Minor: 0, Patch: 42}} {
		want := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
		assert.NoError(t, Compare(want, v))
		assert.ErrorIs(t, Compare(want+".0", v), ErrVersionMismatch)
	}
	assert.ErrorIs(t, Compare("", nix.Version{}), ErrEmptyVersion)
}

func TestFindTextAfterLabel(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    string
		wantErr bool
	}{
		{"sibling div", `<div><b>Nix Version</b><div>2.18.1</div></div>`, "2.18.1", false},
		{"nested pre", `<div><b> Nix Version </b> <div><pre>2.13.0</pre></div></div>`, "2.13.0", false},
		{"first match wins", `<b>Nix Version</b><div>1.0.0</div><b>Nix Version</b><div>2.0.0</div>`, "1.0.0", false},
		{"no label", `<div><b>Nix Config</b><div>x</div></div>`, "", true},
		{"no sibling", `<div><b>Nix Version</b></div>`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader(tt.doc))
			require.NoError(t, err)

			got, err := FindTextAfterLabel(doc, VersionLabel)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrLabelNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "non-empty", ModeNonEmpty.String())
	assert.Equal(t, "exact", ModeExact.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
