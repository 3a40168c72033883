package cmd

import (
	"testing"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/urfave/cli"
)

func TestDefaultReaderOptions(t *testing.T) {
	opts := defaultReaderOptions()
	if !opts.CCW {
		t.Fatal("expected counter-clockwise winding by default")
	}
	if opts.Scale != 1 {
		t.Fatalf("expected unit scale; got %f", opts.Scale)
	}
	if opts.Tree != bsp.DefaultOptions() {
		t.Fatalf("expected default tree options; got %+v", opts.Tree)
	}
}

func TestCCWFlagDefaultsToTrue(t *testing.T) {
	specs := []struct {
		args   []string
		expCCW bool
	}{
		{[]string{"app"}, true},
		{[]string{"app", "--ccw=false"}, false},
		{[]string{"app", "--ccw=true"}, true},
	}

	for index, spec := range specs {
		var got bool
		app := cli.NewApp()
		app.Flags = []cli.Flag{cli.BoolTFlag{Name: "ccw"}}
		app.Action = func(ctx *cli.Context) error {
			got = ctx.BoolT("ccw")
			return nil
		}
		if err := app.Run(spec.args); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if got != spec.expCCW {
			t.Fatalf("[spec %d] expected ccw to be %t; got %t", index, spec.expCCW, got)
		}
	}
}
