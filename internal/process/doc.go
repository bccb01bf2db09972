// Package process spawns and tracks shell commands for the supervisor.
//
// Each Proc wraps an exec.Cmd with lifecycle tracking, exit decoding, and
// an idempotent process-group kill. Commands run through a shell
// interpreter so multi-statement strings, sequencing, and redirection
// behave as written. Stdout and stderr share a single pipe so the captured
// line stream preserves cross-stream emission order as closely as the OS
// allows.
//
// # Usage
//
//	proc, err := process.Spawn("echo hello", process.Options{
//	    OnLine: func(line string) { fmt.Println(line) },
//	})
//	if err != nil {
//	    return err
//	}
//	<-proc.Done()
//	fmt.Printf("exit: %d\n", proc.ExitCode())
//
// # Elevation
//
// Spawn can prepend an elevation prefix (sudo by default) to the shell
// invocation. Whether elevation is permitted is the caller's policy
// decision; this package only performs the wrapping.
//
// # Thread Safety
//
// Proc is safe for concurrent use.
package process
