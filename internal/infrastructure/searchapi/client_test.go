package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

func testConfig(baseURL string) config.SearchAPIConfig {
	return config.SearchAPIConfig{
		BaseURL:            baseURL,
		APIKey:             "test-key",
		RequestTimeout:     2 * time.Second,
		MaxPollingAttempts: 5,
		PollingInterval:    time.Millisecond,
		DefaultThreshold:   0.3,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)
	return client, srv
}


func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := NewClient(config.SearchAPIConfig{APIKey: "k"}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeConfig))

	_, err = NewClient(config.SearchAPIConfig{BaseURL: "http://x"}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeConfig))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, OutcomeCompleted, NormalizeStatus(1))
	assert.Equal(t, OutcomePending, NormalizeStatus(0))
	assert.Equal(t, OutcomeFailed, NormalizeStatus(-1))
	assert.Equal(t, OutcomeFailed, NormalizeStatus(-42))
	assert.Equal(t, OutcomeUnknown, NormalizeStatus(2))
	assert.Equal(t, OutcomeUnknown, NormalizeStatus(7))
}

func TestSubmit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a sensor", "a controller"}, req.SearchInputs)
		assert.InDelta(t, 0.3, req.Threshold, 1e-9)

		writeJSON(w, `{"id":"ext-123"}`)
	}))

	id, err := client.Submit(context.Background(), SubmitRequest{
		SearchInputs: []string{"a sensor", "a controller"},
		Threshold:    0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-123", id)
}

func TestSubmitServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))

	_, err := client.Submit(context.Background(), SubmitRequest{SearchInputs: []string{"x"}})
	assert.True(t, errors.IsCode(err, errors.CodeExternalAPI))
}

func TestSubmitMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{}`)
	}))

	_, err := client.Submit(context.Background(), SubmitRequest{SearchInputs: []string{"x"}})
	assert.True(t, errors.IsCode(err, errors.CodeExternalAPI))
}

func TestPollNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.Poll(context.Background(), "missing")
	assert.True(t, errors.IsCode(err, errors.CodeExternalJobNotFound))
}

func TestPollFailedStatusCarriesPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"status":-3,"error":"index corrupted"}`)
	}))

	res, err := client.Poll(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, -3, res.StatusCode)
	assert.Equal(t, "index corrupted", res.ErrorPayload)
}

func TestPollUntilDonePendingThenCompleted(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/result/ext-9", r.URL.Path)
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			writeJSON(w, `{"status":0}`)
			return
		}
		writeJSON(w, `{"status":1,"result":[{"referenceNumber":"US123","score":0.91}]}`)
	}))

	res, err := client.PollUntilDone(context.Background(), "ext-9")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.JSONEq(t, `[{"referenceNumber":"US123","score":0.91}]`, string(res.Result))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPollUntilDoneExhaustsBudget(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, `{"status":0}`)
	}))

	_, err := client.PollUntilDone(context.Background(), "ext-slow")
	assert.True(t, errors.IsCode(err, errors.CodePollingTimeout))
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))
}

func TestPollUntilDoneRetriesTransientErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "hiccup", http.StatusInternalServerError)
			return
		}
		writeJSON(w, `{"status":1,"result":[]}`)
	}))

	res, err := client.PollUntilDone(context.Background(), "ext-2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
}

func TestPollUntilDoneUnknownStatusAborts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"status":5}`)
	}))

	_, err := client.PollUntilDone(context.Background(), "ext-3")
	assert.True(t, errors.IsCode(err, errors.CodeUnknownStatus))
}

func TestPollUntilDoneStopsOnNotFound(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))

	_, err := client.PollUntilDone(context.Background(), "ext-4")
	assert.True(t, errors.IsCode(err, errors.CodeExternalJobNotFound))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
