package common

import (
	"sync/atomic"

	"github.com/aquareto/aquareto-server/common/config"
)

// UsingSQLite, UsingPostgreSQL and UsingMySQL record which relational driver
// model.InitDB selected, so code paths that differ by dialect (migrations,
// DSN-specific tuning) can branch on them without re-parsing the DSN.
var (
	UsingSQLite     atomic.Bool
	UsingPostgreSQL atomic.Bool
	UsingMySQL      atomic.Bool
)

var SQLitePath = config.SQLitePath
var SQLiteBusyTimeout = config.SQLiteBusyTimeout
