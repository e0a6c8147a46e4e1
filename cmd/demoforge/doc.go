// Package main hosts the demoforge CLI.
//
// Project, cache and analytics commands talk to the daemon over HTTP when it
// answers on paths.api_bind and fall back to the local database otherwise.
// "demoforge run" executes a pipeline in-process; "demoforge run --daemon"
// hands it to the daemon and follows its progress stream.
package main
