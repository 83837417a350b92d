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
	"github.com/rs/zerolog/log"
)

// Record is one day of prices for one symbol, enriched with sentiment and
// request metadata. Row order must match the warehouse column order.
type Record struct {
	Symbol              string  `json:"symbol" parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date                string  `json:"date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Opening             float64 `json:"opening" parquet:"name=opening, type=DOUBLE"`
	High                float64 `json:"high" parquet:"name=high, type=DOUBLE"`
	Low                 float64 `json:"low" parquet:"name=low, type=DOUBLE"`
	Closing             float64 `json:"closing" parquet:"name=closing, type=DOUBLE"`
	Volume              float64 `json:"volume" parquet:"name=volume, type=DOUBLE"`
	Sentiment           string  `json:"aiSentiment" parquet:"name=ai_sentiment, type=BYTE_ARRAY, convertedtype=UTF8"`
	Metadata            string  `json:"metadata" parquet:"name=metadata, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProcessingTimestamp string  `json:"processingTimestamp" parquet:"name=processing_timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Row returns the record values in warehouse column order.
func (r *Record) Row() []interface{} {
	return []interface{}{
		r.Symbol,
		r.Date,
		r.Opening,
		r.High,
		r.Low,
		r.Closing,
		r.Volume,
		r.Sentiment,
		r.Metadata,
		r.ProcessingTimestamp,
	}
}

// Result is the outcome of one symbol's extraction. Err and Records are
// mutually exclusive; a symbol with no trading data yields both empty.
type Result struct {
	Symbol  string
	Records []*Record
	Err     error
}

// Flatten combines the successful results into one record slice. Failed
// symbols are logged and skipped so one bad symbol never poisons the batch.
func Flatten(results []Result) []*Record {
	records := make([]*Record, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("Symbol", res.Symbol).Msg("skipping failed symbol")
			continue
		}
		records = append(records, res.Records...)
	}
	return records
}
