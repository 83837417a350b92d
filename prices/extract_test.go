/*
Copyright 2026

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package prices

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "Meta Data": {
    "1. Information": "Daily Prices (open, high, low, close) and Volumes",
    "2. Symbol": "AAPL"
  },
  "Time Series (Daily)": {
    "2024-01-02": {"1. open": "186.06", "2. high": "187.33", "3. low": "183.82", "4. close": "184.25", "5. volume": "81964874"},
    "2024-01-03": {"1. open": "184.22", "2. high": "185.88", "3. low": "183.43", "4. close": "184.30", "5. volume": "58414460"}
  }
}`

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (s *fakeStore) Upload(ctx context.Context, content, key string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string]string)
	}
	s.objects[key] = content
	return nil
}

func noSentiment(ctx context.Context, symbol, date string) string {
	return ""
}

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractMostRecentDay(t *testing.T) {
	srv := newServer(t, sampleResponse)
	store := &fakeStore{}
	generate := func(ctx context.Context, symbol, date string) string {
		assert.Equal(t, "AAPL", symbol)
		assert.Equal(t, "2024-01-03", date)
		return "Sentiment for AAPL is positive."
	}

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), store, generate)

	require.NoError(t, res.Err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "2024-01-03", rec.Date)
	assert.Equal(t, 184.22, rec.Opening)
	assert.Equal(t, 185.88, rec.High)
	assert.Equal(t, 183.43, rec.Low)
	assert.Equal(t, 184.30, rec.Closing)
	assert.Equal(t, 58414460.0, rec.Volume)
	assert.JSONEq(t, `{"symbol_sentiment": "Sentiment for AAPL is positive."}`, rec.Sentiment)
	assert.Contains(t, rec.Metadata, `"2. Symbol":"AAPL"`)
	assert.NotEmpty(t, rec.ProcessingTimestamp)
}

func TestExtractArchivesRawPayload(t *testing.T) {
	srv := newServer(t, sampleResponse)
	store := &fakeStore{}

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), store, noSentiment)

	require.NoError(t, res.Err)
	require.Len(t, store.objects, 1)
	for key, body := range store.objects {
		assert.True(t, strings.HasPrefix(key, "price_data/AAPL_"))
		assert.True(t, strings.HasSuffix(key, ".json"))
		assert.Equal(t, sampleResponse, body)
	}
}

func TestExtractWindowLargerThanAvailable(t *testing.T) {
	srv := newServer(t, sampleResponse)

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 5}, resty.New(), nil)
	res := ex.Extract(context.Background(), &fakeStore{}, noSentiment)

	require.NoError(t, res.Err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "2024-01-03", res.Records[0].Date)
	assert.Equal(t, "2024-01-02", res.Records[1].Date)
}

func TestExtractNoTimeSeries(t *testing.T) {
	srv := newServer(t, `{"Meta Data": {"1. Information": "rate limited"}}`)

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), &fakeStore{}, noSentiment)

	assert.NoError(t, res.Err)
	assert.Empty(t, res.Records)
}

func TestExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	store := &fakeStore{}
	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), store, noSentiment)

	assert.Error(t, res.Err)
	assert.Empty(t, res.Records)
	assert.Empty(t, store.objects)
}

func TestExtractTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), &fakeStore{}, noSentiment)

	assert.Error(t, res.Err)
	assert.Empty(t, res.Records)
}

func TestExtractUploadFailurePropagates(t *testing.T) {
	srv := newServer(t, sampleResponse)
	uploadErr := errors.New("bucket gone")

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), &fakeStore{err: uploadErr}, noSentiment)

	assert.ErrorIs(t, res.Err, uploadErr)
	assert.Empty(t, res.Records)
}

func TestExtractMalformedNumber(t *testing.T) {
	body := `{
	  "Meta Data": {"2. Symbol": "AAPL"},
	  "Time Series (Daily)": {
	    "2024-01-03": {"1. open": "n/a", "2. high": "185.88", "3. low": "183.43", "4. close": "184.30", "5. volume": "58414460"}
	  }
	}`
	srv := newServer(t, body)

	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), &fakeStore{}, noSentiment)

	assert.Error(t, res.Err)
	assert.Empty(t, res.Records)
}

func TestSentimentFailureStillPopulatesField(t *testing.T) {
	srv := newServer(t, sampleResponse)

	// the sentiment contract degrades every failure to an empty string
	ex := NewExtractor("AAPL", Config{BaseURL: srv.URL, Window: 1}, resty.New(), nil)
	res := ex.Extract(context.Background(), &fakeStore{}, noSentiment)

	require.NoError(t, res.Err)
	require.Len(t, res.Records, 1)
	assert.JSONEq(t, `{"symbol_sentiment": ""}`, res.Records[0].Sentiment)
}

func TestFetchIsolatesFailedSymbol(t *testing.T) {
	viper.Set("api_rate_limit", 100)
	t.Cleanup(func() { viper.Set("api_rate_limit", nil) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "NVDA" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sampleResponse))
	}))
	t.Cleanup(srv.Close)

	symbols := []string{"AAPL", "NVDA", "MSFT"}
	results := Fetch(context.Background(), symbols, Config{BaseURL: srv.URL, Window: 1}, resty.New(), &fakeStore{}, noSentiment)
	require.Len(t, results, 3)

	records := Flatten(results)
	require.Len(t, records, 2)
	got := map[string]bool{}
	for _, rec := range records {
		got[rec.Symbol] = true
	}
	assert.True(t, got["AAPL"])
	assert.True(t, got["MSFT"])
	assert.False(t, got["NVDA"])
}

func TestFlattenSkipsFailures(t *testing.T) {
	results := []Result{
		{Symbol: "AAPL", Records: []*Record{{Symbol: "AAPL", Date: "2024-01-03"}}},
		{Symbol: "NVDA", Err: errors.New("transport error")},
		{Symbol: "MSFT", Records: []*Record{{Symbol: "MSFT", Date: "2024-01-03"}}},
	}

	records := Flatten(results)
	require.Len(t, records, 2)
	assert.Equal(t, "AAPL", records[0].Symbol)
	assert.Equal(t, "MSFT", records[1].Symbol)
}
