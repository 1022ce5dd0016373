// Package flaky provides a scripted documentstore.Store decorator for tests.
//
// Get calls consume a script of behaviors (hang until the deadline, stall ignoring the context,
// fail, pass through); writes and connection cycling can be made to fail. Every call is counted
// and logged with its path so that tests can assert on the exact access pattern.
package flaky
