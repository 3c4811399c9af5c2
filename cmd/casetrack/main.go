// Command casetrack joins shared test-case sessions from the terminal.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rpggio/casetrack/internal/client"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/lifecycle"
	"github.com/rpggio/casetrack/internal/replica"
)

// Exit codes: user errors are fixable by changing the input, system errors are not.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "casetrack:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

func exitCode(err error) int {
	userErrors := []error{
		client.ErrUnauthorized,
		lifecycle.ErrAuthenticationRequired,
		lifecycle.ErrSessionNotFound,
		replica.ErrReadOnly,
		replica.ErrCaseNotFound,
		testcase.ErrFailedRequirements,
		testcase.ErrUnknownField,
		testcase.ErrInvalidStatus,
		testcase.ErrInvalidRecord,
		errUsage,
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
