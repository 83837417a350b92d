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
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Write modes accepted by WriteRows.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
	ModeUpsert  = "upsert"
)

// ErrUnsupportedMode is returned for a write mode WriteRows does not know.
var ErrUnsupportedMode = errors.New("unsupported write mode")

// WriteRows writes rows into table using the given column order. Append
// issues one multi-row insert; replace deletes all existing rows first;
// upsert merges each row on equality over upsertKeys, updating non-key
// columns on match and inserting otherwise. Identifiers are validated before
// any SQL is built and row values are always bound as parameters. The whole
// batch commits before returning or the caller sees the error.
func (c *Client) WriteRows(ctx context.Context, creds *Credentials, table string, rows [][]interface{}, columns []string, mode string, upsertKeys []string) error {
	switch mode {
	case ModeAppend, ModeReplace, ModeUpsert:
	default:
		log.Error().Str("Mode", mode).Str("Table", table).Msg("unsupported write mode")
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}

	if err := validateIdentifier(table); err != nil {
		return err
	}
	if err := validateIdentifiers(columns); err != nil {
		return err
	}
	if mode == ModeUpsert {
		if len(upsertKeys) == 0 {
			return errors.New("upsert requires at least one key column")
		}
		if len(upsertKeys) >= len(columns) {
			return errors.New("upsert requires at least one non-key column")
		}
		for _, key := range upsertKeys {
			if !contains(columns, key) {
				return fmt.Errorf("upsert key %q is not a write column", key)
			}
		}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	if len(rows) == 0 {
		log.Info().Str("Table", table).Msg("no rows to write")
		return nil
	}

	conn, err := c.connect(ctx, c.dsn(creds))
	if err != nil {
		log.Error().Err(err).Str("Host", c.Host).Str("Database", c.Database).Msg("could not connect to warehouse")
		return err
	}
	defer conn.Close(ctx)

	if mode == ModeReplace {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s;", table)); err != nil {
			log.Error().Err(err).Str("Table", table).Msg("could not delete existing rows")
			return err
		}
		mode = ModeAppend
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Str("Table", table).Msg("could not begin transaction")
		return err
	}

	switch mode {
	case ModeAppend:
		stmt, args := buildInsert(table, columns, rows)
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			tx.Rollback(ctx)
			log.Error().Err(err).Str("Table", table).Str("Query", stmt).Msg("error inserting rows")
			return err
		}
	case ModeUpsert:
		stmt := buildMerge(table, columns, upsertKeys)
		for _, row := range rows {
			if _, err := tx.Exec(ctx, stmt, row...); err != nil {
				tx.Rollback(ctx)
				log.Error().Err(err).Str("Table", table).Str("Query", stmt).Msg("error merging row")
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Str("Table", table).Msg("could not commit write")
		return err
	}
	log.Info().Int("NumRows", len(rows)).Str("Table", table).Msg("rows written")
	return nil
}

// buildInsert produces one parameterized multi-row insert statement and its
// flattened argument list.
func buildInsert(table string, columns []string, rows [][]interface{}) (string, []interface{}) {
	args := make([]interface{}, 0, len(rows)*len(columns))
	groups := make([]string, 0, len(rows))
	n := 1
	for _, row := range rows {
		ph := make([]string, len(columns))
		for i := range columns {
			ph[i] = fmt.Sprintf("$%d", n)
			n++
		}
		groups = append(groups, "("+strings.Join(ph, ", ")+")")
		args = append(args, row...)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s;",
		table, strings.Join(columns, ", "), strings.Join(groups, ", "))
	return stmt, args
}

// buildMerge produces a parameterized merge statement for one row: the row's
// values are selected as a source record, matched against the target on the
// key columns, and either update the non-key columns or insert the full row.
func buildMerge(table string, columns []string, keys []string) string {
	sourceCols := make([]string, len(columns))
	insertVals := make([]string, len(columns))
	for i, col := range columns {
		sourceCols[i] = fmt.Sprintf("$%d AS %s", i+1, col)
		insertVals[i] = "source." + col
	}

	conds := make([]string, len(keys))
	for i, key := range keys {
		conds[i] = fmt.Sprintf("%s.%s = source.%s", table, key, key)
	}

	updates := make([]string, 0, len(columns)-len(keys))
	for _, col := range columns {
		if !contains(keys, col) {
			updates = append(updates, fmt.Sprintf("%s = source.%s", col, col))
		}
	}

	return fmt.Sprintf(
		"MERGE INTO %s USING (SELECT %s) AS source ON %s WHEN MATCHED THEN UPDATE SET %s WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		table,
		strings.Join(sourceCols, ", "),
		strings.Join(conds, " AND "),
		strings.Join(updates, ", "),
		strings.Join(columns, ", "),
		strings.Join(insertVals, ", "),
	)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
