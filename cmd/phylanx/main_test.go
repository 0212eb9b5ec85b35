package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets testscript re-exec this test binary as the "phylanx"
// command inside each script's isolated work directory, the same
// whole-process exercise the teacher's internal/testing package gives
// .sn scripts, but driven by a real golden-script harness instead of a
// hand-rolled TestRunner.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"phylanx": func() int { return run(os.Args[1:]) },
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
