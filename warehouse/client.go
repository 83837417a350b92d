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

// Package warehouse loads price records into a Redshift Serverless table
// using temporary credentials issued per run.
package warehouse

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Column pairs a warehouse column name with its data type. A []Column defines
// both the CREATE TABLE shape and the column order for writes.
type Column struct {
	Name string
	Type string
}

// Columns is an ordered column schema.
type Columns []Column

// Names returns the column names in schema order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typePattern       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ()]*$`)
)

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func validateIdentifiers(names []string) error {
	for _, name := range names {
		if err := validateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// Client issues DDL and DML against the warehouse. Every operation opens a
// fresh connection with the supplied credentials and releases it before
// returning.
type Client struct {
	Host     string
	Port     int
	Database string

	connect Connector
}

func NewClient(host string, port int, database string) *Client {
	return &Client{Host: host, Port: port, Database: database, connect: pgxConnector}
}

func (c *Client) dsn(creds *Credentials) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.User, creds.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	return u.String()
}

func (c *Client) exec(ctx context.Context, creds *Credentials, stmt string) error {
	conn, err := c.connect(ctx, c.dsn(creds))
	if err != nil {
		log.Error().Err(err).Str("Host", c.Host).Str("Database", c.Database).Msg("could not connect to warehouse")
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, stmt); err != nil {
		log.Error().Err(err).Str("Query", stmt).Msg("error executing statement")
		return err
	}
	return nil
}

// Query runs a read query inside a scoped connection and returns the rows as
// value slices.
func (c *Client) Query(ctx context.Context, creds *Credentials, sql string, args ...interface{}) ([][]interface{}, error) {
	conn, err := c.connect(ctx, c.dsn(creds))
	if err != nil {
		log.Error().Err(err).Str("Host", c.Host).Str("Database", c.Database).Msg("could not connect to warehouse")
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		log.Error().Err(err).Str("Query", sql).Msg("error executing query")
		return nil, err
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			log.Error().Err(err).Str("Query", sql).Msg("error reading row values")
			return nil, err
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Str("Query", sql).Msg("error iterating rows")
		return nil, err
	}
	return out, nil
}

// CreateTable creates name with the given schema if it does not already
// exist. Columns appear in schema order.
func (c *Client) CreateTable(ctx context.Context, creds *Credentials, name string, cols Columns) error {
	if err := validateIdentifier(name); err != nil {
		return err
	}
	defs := make([]string, 0, len(cols))
	for _, col := range cols {
		if err := validateIdentifier(col.Name); err != nil {
			return err
		}
		if !typePattern.MatchString(col.Type) {
			return fmt.Errorf("invalid column type %q", col.Type)
		}
		defs = append(defs, col.Name+" "+col.Type)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", name, strings.Join(defs, ", "))
	if err := c.exec(ctx, creds, stmt); err != nil {
		return err
	}
	log.Info().Str("Table", name).Msg("table ensured")
	return nil
}

// DropTable drops name if it exists.
func (c *Client) DropTable(ctx context.Context, creds *Credentials, name string) error {
	if err := validateIdentifier(name); err != nil {
		return err
	}
	if err := c.exec(ctx, creds, fmt.Sprintf("DROP TABLE IF EXISTS %s;", name)); err != nil {
		return err
	}
	log.Info().Str("Table", name).Msg("table dropped")
	return nil
}
