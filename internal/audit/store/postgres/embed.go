package postgres

import _ "embed"

// Schema holds the engine DDL so test harnesses can bootstrap a database
// without shelling out to migration tooling.
//
//go:embed schema.sql
var Schema string
