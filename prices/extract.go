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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"go.uber.org/ratelimit"

	"github.com/thedataninja1786/aws-financial-ai-workflow/archive"
	"github.com/thedataninja1786/aws-financial-ai-workflow/sentiment"
)

// Config carries the market-data API settings shared by all extractors.
type Config struct {
	BaseURL string
	APIKey  string
	APIHost string
	Window  int
}

// Extractor fetches the daily time series for a single symbol.
type Extractor struct {
	symbol string
	cfg    Config
	client *resty.Client
	limit  ratelimit.Limiter
}

// NewExtractor binds an extractor to a symbol. The resty client and rate
// limiter are shared across all extractors in a run; a nil limiter disables
// rate governing (used by tests).
func NewExtractor(symbol string, cfg Config, client *resty.Client, limit ratelimit.Limiter) *Extractor {
	if limit == nil {
		limit = ratelimit.NewUnlimited()
	}
	return &Extractor{symbol: symbol, cfg: cfg, client: client, limit: limit}
}

type dailyQuote struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type timeSeriesResponse struct {
	MetaData map[string]string     `json:"Meta Data"`
	Series   map[string]dailyQuote `json:"Time Series (Daily)"`
}

// Extract fetches the symbol's daily series, archives the raw response,
// and returns records for the most recent Window trading days. All failures
// are captured in the returned Result rather than propagated, so a bad
// symbol stays isolated from its siblings.
func (e *Extractor) Extract(ctx context.Context, store archive.Store, generate sentiment.Func) Result {
	res := Result{Symbol: e.symbol}

	e.limit.Take()
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Content-Type":    "application/json",
			"Accept":          "application/json",
			"X-RapidAPI-Key":  e.cfg.APIKey,
			"X-RapidAPI-Host": e.cfg.APIHost,
		}).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     e.symbol,
			"outputsize": "compact",
			"datatype":   "json",
		}).
		Get(e.cfg.BaseURL)
	if err != nil {
		log.Error().Err(err).Str("Symbol", e.symbol).Msg("error when requesting daily prices")
		res.Err = err
		return res
	}
	if resp.StatusCode() >= 400 {
		log.Error().Int("StatusCode", resp.StatusCode()).Str("Symbol", e.symbol).Bytes("Body", resp.Body()).Msg("error when requesting daily prices")
		res.Err = fmt.Errorf("daily prices request for %s returned http %d", e.symbol, resp.StatusCode())
		return res
	}

	key := fmt.Sprintf("price_data/%s_%s.json", e.symbol, time.Now().Format("2006-01-02_15-04-05"))
	if err := store.Upload(ctx, string(resp.Body()), key); err != nil {
		res.Err = err
		return res
	}

	var payload timeSeriesResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		log.Error().Err(err).Str("Symbol", e.symbol).Msg("could not decode daily prices response")
		res.Err = err
		return res
	}
	if len(payload.Series) == 0 {
		log.Warn().Str("Symbol", e.symbol).Msg("no time series data found")
		return res
	}

	metadata, err := json.Marshal(payload.MetaData)
	if err != nil {
		res.Err = err
		return res
	}

	// the API returns far more dates than the window; keep the most recent
	dates := make([]string, 0, len(payload.Series))
	for date := range payload.Series {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > e.cfg.Window {
		dates = dates[:e.cfg.Window]
	}

	for _, date := range dates {
		record, err := e.buildRecord(ctx, date, payload.Series[date], string(metadata), generate)
		if err != nil {
			log.Error().Err(err).Str("Symbol", e.symbol).Str("Date", date).Msg("could not build price record")
			res.Records = nil
			res.Err = err
			return res
		}
		res.Records = append(res.Records, record)
	}
	return res
}

func (e *Extractor) buildRecord(ctx context.Context, date string, quote dailyQuote, metadata string, generate sentiment.Func) (*Record, error) {
	record := &Record{
		Symbol:              e.symbol,
		Date:                date,
		Metadata:            metadata,
		ProcessingTimestamp: time.Now().Format("2006-01-02-15:04:05"),
	}

	fields := []struct {
		name string
		val  string
		dst  *float64
	}{
		{"open", quote.Open, &record.Opening},
		{"high", quote.High, &record.High},
		{"low", quote.Low, &record.Low},
		{"close", quote.Close, &record.Closing},
		{"volume", quote.Volume, &record.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.val, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", f.name, f.val, err)
		}
		*f.dst = v
	}

	sentimentJSON, err := json.Marshal(map[string]string{"symbol_sentiment": generate(ctx, e.symbol, date)})
	if err != nil {
		return nil, err
	}
	record.Sentiment = string(sentimentJSON)
	return record, nil
}

// Fetch runs one extraction per symbol concurrently over a shared client and
// rate limiter. Each symbol produces an independent Result; one symbol's
// failure never cancels the others.
func Fetch(ctx context.Context, symbols []string, cfg Config, client *resty.Client, store archive.Store, generate sentiment.Func) []Result {
	rate := viper.GetInt("api_rate_limit")
	if rate <= 0 {
		rate = 5
	}
	limit := ratelimit.New(rate)

	bar := progressbar.Default(int64(len(symbols)))
	results := make([]Result, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i] = NewExtractor(symbol, cfg, client, limit).Extract(ctx, store, generate)
			bar.Add(1)
		}(i, symbol)
	}
	wg.Wait()
	return results
}
