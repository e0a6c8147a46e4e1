// Package logs reads demoforge log files for the `demoforge logs` command.
//
// Files are read by byte offset so a follower only ever holds one batch of
// new lines in memory. Rotation and truncation are detected by the file
// shrinking below the saved offset, in which case reading restarts at the
// top. Filter narrows output to one project or a minimum level and
// understands both the JSON and console log formats.
package logs
