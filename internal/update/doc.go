// Package update implements CareLite's self-update session.
//
// A Coordinator runs at most one session at a time. Each session resolves the
// latest published release, compares it with the running version, asks the
// user for consent, stages the matching asset in a private directory and hands
// the staged file to a replacement Strategy:
//
//   - RelaunchStrategy starts the staged binary in helper mode
//     (ApplyUpdateFlag); the helper waits for the old process, swaps the files
//     and starts the new version.
//   - InstallerStrategy renders an installer script and runs it elevated.
//
// Every step is written to the diagnostics log and every failure carries an
// error code from carelite/internal/errors.
//
// Example usage:
//
//	resolver := update.NewResolver(owner, repo)
//	coord := update.NewCoordinator(host, update.Dependencies{
//	    Source:   resolver,
//	    Fetcher:  update.NewDownloader(),
//	    Prompter: prompter,
//	    Strategy: update.NewRelaunchStrategy(log),
//	})
//	res := <-coord.Initiate(ctx)
package update
