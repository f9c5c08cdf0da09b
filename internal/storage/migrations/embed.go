package migrations

import "embed"

// PostgresFS embeds the PostgreSQL migrations: the trades table and its
// indexes.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse migrations: the bars timeseries table.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
