// Package preflight checks that the local environment can run convorag:
// writable data and message directories, free disk space, file descriptor
// limits, a readable document pool and a reachable embedding provider.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Targets{DataDir: dir})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
