package reputation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_Check_CountsFailuresWithinWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"precommit": {
				"all_timestamps": ["t1","t2","t3","t4","t5","t6"],
				"success_timestamps": ["t1","t2"]
			},
			"commit": {
				"all_timestamps": ["t1","t2","t3"],
				"success_timestamps": ["t1","t2","t3"]
			}
		}`))
	}))
	defer srv.Close()

	p := New(srv.URL, 20)
	results, err := p.Check("0xabc")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "precommit", results[0].Stage)
	assert.Equal(t, 4, results[0].Failed)
	assert.Equal(t, "commit", results[1].Stage)
	assert.Equal(t, 0, results[1].Failed)
}

func TestProber_Check_WindowLimitsRecentEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"precommit": {
				"all_timestamps": ["t1","t2","t3","t4","t5"],
				"success_timestamps": ["t1"]
			},
			"commit": {"all_timestamps": [], "success_timestamps": []}
		}`))
	}))
	defer srv.Close()

	// Window of 2 only looks at the last two entries (t4, t5), both of
	// which are unsuccessful.
	p := New(srv.URL, 2)
	results, err := p.Check("0xabc")
	require.NoError(t, err)
	assert.Equal(t, 2, results[0].Failed)
}

func TestProber_Check_404IsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(srv.URL, 20)
	_, err := p.Check("0xabc")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestProber_Check_ServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL, 20)
	_, err := p.Check("0xabc")
	assert.Error(t, err)
}
