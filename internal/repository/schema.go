package repository

// table names; the database comes from the connection DSN
const (
	tablePrices      = "token_prices"
	tableRoundResult = "round_results"
	tableRatings     = "token_ratings"
	tablePredictions = "prediction_results"
	tableReports     = "backtest_reports"
)

// Schema returns idempotent DDL for every table the repositories use.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS token_prices (
            symbol      LowCardinality(String),
            minute      DateTime('UTC'),
            price       Float64,
            inserted_at DateTime('UTC') DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        PARTITION BY toYYYYMM(minute)
        ORDER BY (symbol, minute)`,

		`CREATE TABLE IF NOT EXISTS round_results (
            round_id   String,
            symbol     LowCardinality(String),
            rank       UInt16,
            value      Float64,
            started_at DateTime64(3, 'UTC'),
            settled_at DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree
        ORDER BY (round_id, symbol)`,

		`CREATE TABLE IF NOT EXISTS token_ratings (
            symbol     LowCardinality(String),
            elo        Float64,
            games      UInt32,
            updated_at DateTime('UTC')
        ) ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY symbol`,

		`CREATE TABLE IF NOT EXISTS prediction_results (
            round_id      String,
            symbol        LowCardinality(String),
            rank          UInt16,
            score         Float64,
            strategy      LowCardinality(String),
            features      String,
            weights       String,
            normalization String,
            predicted_at  DateTime64(3, 'UTC')
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(predicted_at)
        ORDER BY (predicted_at, round_id, symbol)`,

		`CREATE TABLE IF NOT EXISTS backtest_reports (
            id         String,
            kind       LowCardinality(String),
            strategy   String,
            parameters String,
            payload    String,
            created_at DateTime64(3, 'UTC')
        ) ENGINE = MergeTree
        ORDER BY (created_at, id)`,
	}
}
