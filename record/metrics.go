package record

import (
	"github.com/cactus/go-statsd-client/v5/statsd"
)

// optional statter for merge/diff/purge/codec counters. Nothing is
// emitted until one is installed
var stats statsd.Statter

func SetStatter(s statsd.Statter) {
	stats = s
}

func statInc(name string) {
	if stats != nil {
		stats.Inc(name, 1, 1.0)
	}
}
