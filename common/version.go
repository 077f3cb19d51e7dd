package common

import "time"

// Version and StartTime are stamped into the Prometheus build-info gauge and
// the /api/v1/get_player_count style status responses.
var (
	Version   = "v0.0.0"
	StartTime = time.Now().Unix()
)
