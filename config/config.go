/**

runtime configuration

reads tunables from viper (config file / env / explicit Set) with
defaults that match a standalone deployment.

 */
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/bdeggleston/rowstore/record"
)

const (
	// ten days, long enough for repair to visit every replica
	// before tombstones become purgeable
	DefaultGCGraceSeconds = 864000
)

type Options struct {
	GCGraceSeconds  int32
	ProtocolVersion uint32
	Strategy        record.Strategy
	Hint            record.InsertHint
}

func init() {
	viper.SetDefault("gc-grace-seconds", DefaultGCGraceSeconds)
	viper.SetDefault("protocol-version", int(record.CurrentVersion))
	viper.SetDefault("container-strategy", "single-writer")
	viper.SetDefault("insert-hint", "forward")
}

func Load() (*Options, error) {
	opts := &Options{
		GCGraceSeconds:  int32(viper.GetInt("gc-grace-seconds")),
		ProtocolVersion: uint32(viper.GetInt("protocol-version")),
	}
	if opts.GCGraceSeconds < 0 {
		return nil, fmt.Errorf("gc-grace-seconds must be >= 0, got %v", opts.GCGraceSeconds)
	}
	if opts.ProtocolVersion < record.Version1 || opts.ProtocolVersion > record.CurrentVersion {
		return nil, fmt.Errorf("unknown protocol-version: %v", opts.ProtocolVersion)
	}

	switch strategy := viper.GetString("container-strategy"); strategy {
	case "single-writer":
		opts.Strategy = record.SingleWriter
	case "concurrent":
		opts.Strategy = record.Concurrent
	default:
		return nil, fmt.Errorf("unknown container-strategy: %v", strategy)
	}

	switch hint := viper.GetString("insert-hint"); hint {
	case "forward":
		opts.Hint = record.Forward
	case "reverse":
		opts.Hint = record.Reverse
	default:
		return nil, fmt.Errorf("unknown insert-hint: %v", hint)
	}
	return opts, nil
}

func (o *Options) Factory() record.Factory {
	return record.Factory{Strategy: o.Strategy, Hint: o.Hint}
}

// the tombstone gc threshold for a purge running at the given
// wall clock time
func (o *Options) GCBefore(now time.Time) int32 {
	return int32(now.Unix()) - o.GCGraceSeconds
}
