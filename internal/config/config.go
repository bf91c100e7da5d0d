// Package config holds the compiler's CLI configuration and resolves the
// thread count from the --threads override, the manifest's
// runtime.threads, and runtime.NumCPU() (§2.3, §6.3).
package config

import "runtime"

// Config is the resolved set of settings one compilation runs with.
type Config struct {
	InputPath  string
	OutputPath string
	Threads    int
	Verbose    bool
	KeepIR     bool
}

// ResolveThreads returns cfg.Threads if set, otherwise runtime.NumCPU().
func (c Config) ResolveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// ResolveThreadsOver resolves a thread count given a manifest-declared
// value: cfg.Threads wins as an explicit override (§6.3 --threads),
// then the manifest's own value, then runtime.NumCPU().
func (c Config) ResolveThreadsOver(manifestThreads int) int {
	if c.Threads > 0 {
		return c.Threads
	}
	if manifestThreads > 0 {
		return manifestThreads
	}
	return runtime.NumCPU()
}
