package redis

import "time"

// Options configures the Redis connection.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	IOTimeout   time.Duration
	PoolSize    int
}

func (o Options) withDefaults() Options {
	out := o
	if out.Addr == "" {
		out.Addr = "127.0.0.1:6379"
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 5 * time.Second
	}
	if out.IOTimeout <= 0 {
		out.IOTimeout = 3 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 8
	}
	return out
}
