// Package preflight provides readiness checks for the host resources, paths,
// binaries and services DemoForge depends on.
//
// These checks run in two contexts:
//   - The daemon reports RunAll and CheckSystemDeps from GET /api/status.
//   - The CLI "demoforge status" command adds CheckLLMFromConfig, which makes a
//     real completion request and is therefore kept out of RunAll.
//
// Checks never fail the process; callers decide what a failed Result means.
package preflight
