package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
)

// Environment variables passing the global flags to extensions.
const (
	EnvConfigFile  = "FOLIO_CONFIG"
	EnvJournalFile = "FOLIO_JOURNAL"
	EnvPoolsFile   = "FOLIO_POOLS"
	EnvAt          = "FOLIO_AT"
	EnvPlain       = "FOLIO_PLAIN"
)

// RunExtension attempts to find and execute an external vaultctl-<subcommand> binary.
// It returns (true, exitCode) if an extension was found and executed,
// and (false, 0) if no extension was found.
func RunExtension(subcommand string, args []string) (bool, int) {
	externalCmdName := "vaultctl-" + subcommand

	lp, err := exec.LookPath(externalCmdName)
	if err != nil {
		log.Printf("External command %q not found in PATH: %v", externalCmdName, err)
		return false, 0
	}

	cmd := exec.Command(lp, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Pass global flags as environment variables
	cmd.Env = append(os.Environ(),
		EnvConfigFile+"="+*configFile,
		EnvJournalFile+"="+*journalFile,
		EnvPoolsFile+"="+*poolsFile,
		EnvAt+"="+*at,
		EnvPlain+"="+strconv.FormatBool(*plain),
	)

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return true, exitError.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing external command %q: %v\n", externalCmdName, err)
		return true, 1 // an attempt was made, but it failed
	}
	return true, 0
}
