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
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thedataninja1786/aws-financial-ai-workflow/archive"
	"github.com/thedataninja1786/aws-financial-ai-workflow/prices"
	"github.com/thedataninja1786/aws-financial-ai-workflow/sentiment"
	"github.com/thedataninja1786/aws-financial-ai-workflow/warehouse"
)

var cfgFile string

// columnSchema defines the warehouse table shape. Record.Row() must produce
// values in exactly this order.
var columnSchema = warehouse.Columns{
	{Name: "symbol", Type: "VARCHAR"},
	{Name: "date", Type: "VARCHAR"},
	{Name: "opening", Type: "REAL"},
	{Name: "high", Type: "REAL"},
	{Name: "low", Type: "REAL"},
	{Name: "closing", Type: "REAL"},
	{Name: "volume", Type: "REAL"},
	{Name: "ai_sentiment", Type: "SUPER"},
	{Name: "metadata", Type: "SUPER"},
	{Name: "processing_timestamp", Type: "VARCHAR"},
}

var upsertKeys = []string{"date", "symbol"}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "daily-prices",
	Short: "Download daily stock prices and load them into the warehouse",
	Long: `Download daily stock prices for the configured symbols, archive the
raw API responses to S3, enrich each row with an LLM sentiment summary,
and upsert the result into the Redshift daily_prices table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
	SilenceUsage: true,
}

func run(ctx context.Context) error {
	symbols := viper.GetStringSlice("symbols")
	cfg := prices.Config{
		BaseURL: viper.GetString("api.base_url"),
		APIKey:  strings.TrimSpace(viper.GetString("api.key")),
		APIHost: strings.TrimSpace(viper.GetString("api.host")),
		Window:  viper.GetInt("window"),
	}

	store, err := archive.NewS3Store(ctx, viper.GetString("bucket"))
	if err != nil {
		return err
	}
	generator := sentiment.NewGenerator(strings.TrimSpace(viper.GetString("openai.key")))
	client := resty.New().SetTimeout(10 * time.Second)

	results := prices.Fetch(ctx, symbols, cfg, client, store, generator.Generate)
	records := prices.Flatten(results)
	log.Info().Int("NumSymbols", len(symbols)).Int("NumRecords", len(records)).Msg("fetch phase finished")

	if fn := viper.GetString("parquet_file"); fn != "" {
		if err := prices.SaveToParquet(records, fn); err != nil {
			return err
		}
	}

	issuer := warehouse.NewCredentialIssuer(
		viper.GetString("warehouse.workgroup"),
		viper.GetString("warehouse.database"),
		viper.GetString("warehouse.region"),
	)
	creds, err := issuer.IssueCredentials(ctx)
	if err != nil {
		return err
	}

	wh := warehouse.NewClient(
		viper.GetString("warehouse.host"),
		viper.GetInt("warehouse.port"),
		viper.GetString("warehouse.database"),
	)

	tableName := viper.GetString("table_name")
	if err := wh.CreateTable(ctx, creds, tableName, columnSchema); err != nil {
		return err
	}

	rows := make([][]interface{}, len(records))
	for i, record := range records {
		rows[i] = record.Row()
	}
	return wh.WriteRows(ctx, creds, tableName, rows, columnSchema.Names(), warehouse.ModeUpsert, upsertKeys)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnInitialize(initLog)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is daily-prices.toml)")
	rootCmd.PersistentFlags().Bool("log.json", false, "print logs as json to stderr")
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log.json"))

	// Local flags
	rootCmd.Flags().StringSliceP("symbols", "s", []string{"MSFT", "AAPL", "NVDA", "GOOGL", "TSLA"}, "ticker symbols to download")
	viper.BindPFlag("symbols", rootCmd.Flags().Lookup("symbols"))

	rootCmd.Flags().String("bucket", "daily-stock-prices-750477223923", "S3 bucket for raw payload archive")
	viper.BindPFlag("bucket", rootCmd.Flags().Lookup("bucket"))

	rootCmd.Flags().String("table-name", "daily_prices", "warehouse table to load")
	viper.BindPFlag("table_name", rootCmd.Flags().Lookup("table-name"))

	rootCmd.Flags().IntP("window", "w", 1, "number of most recent trading days to keep per symbol")
	viper.BindPFlag("window", rootCmd.Flags().Lookup("window"))

	rootCmd.Flags().Int("api-rate-limit", 5, "market data api rate limit (requests per second)")
	viper.BindPFlag("api_rate_limit", rootCmd.Flags().Lookup("api-rate-limit"))

	rootCmd.Flags().String("parquet-file", "", "save results to parquet")
	viper.BindPFlag("parquet_file", rootCmd.Flags().Lookup("parquet-file"))

	viper.SetDefault("api.base_url", "https://alpha-vantage.p.rapidapi.com/query/")
	viper.SetDefault("warehouse.workgroup", "stock-data-analysis")
	viper.SetDefault("warehouse.database", "dev")
	viper.SetDefault("warehouse.host", "football-results-etl.750477223923.eu-north-1.redshift-serverless.amazonaws.com")
	viper.SetDefault("warehouse.port", 5439)
	viper.SetDefault("warehouse.region", "eu-north-1")

	// secrets come from the environment
	viper.BindEnv("api.key", "API_KEY")
	viper.BindEnv("api.host", "HOST")
	viper.BindEnv("openai.key", "OPENAI_KEY")
}

func initLog() {
	if !viper.GetBool("log.json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".daily-prices" (without extension).
		viper.AddConfigPath("/etc/daily-prices/") // path to look for the config file in
		viper.AddConfigPath(fmt.Sprintf("%s/.daily-prices", home))
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		viper.SetConfigName("daily-prices")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("ConfigFile", viper.ConfigFileUsed()).Msg("Loaded config file")
	}
}
