// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Command delegation exposes the binary diff codec used for account
// state commits: computing a diff between two state files, applying a
// diff to a state file, and inspecting an encoded diff.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/delegation/internal/log"
	"github.com/ChainSafe/delegation/pkg/diff"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "cmd"))

var (
	logLevelFlag = &cli.StringFlag{
		Name:  "log",
		Usage: "global log level, one of trce, dbug, info, warn, eror, crit",
		Value: log.Info.String(),
	}
	originalFlag = &cli.StringFlag{
		Name:     "original",
		Usage:    "path to the original state file",
		Required: true,
	}
	changedFlag = &cli.StringFlag{
		Name:     "changed",
		Usage:    "path to the changed state file",
		Required: true,
	}
	diffFlag = &cli.StringFlag{
		Name:     "diff",
		Usage:    "path to the encoded diff file",
		Required: true,
	}
	outFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "path to write the result to",
		Required: true,
	}
)

func main() {
	app := &cli.App{
		Name:   "delegation",
		Usage:  "delegation program state diff tooling",
		Flags:  []cli.Flag{logLevelFlag},
		Before: setGlobalLogLevel,
		Commands: []*cli.Command{
			{
				Name:  "diff",
				Usage: "binary state diff operations",
				Subcommands: []*cli.Command{
					{
						Name:   "compute",
						Usage:  "compute the diff between two state files",
						Flags:  []cli.Flag{originalFlag, changedFlag, outFlag},
						Action: computeDiff,
					},
					{
						Name:   "apply",
						Usage:  "apply a diff to a state file",
						Flags:  []cli.Flag{originalFlag, diffFlag, outFlag},
						Action: applyDiff,
					},
					{
						Name:   "inspect",
						Usage:  "print the segments of an encoded diff",
						Flags:  []cli.Flag{diffFlag},
						Action: inspectDiff,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

func setGlobalLogLevel(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.String(logLevelFlag.Name))
	if err != nil {
		return err
	}
	log.Patch(log.SetLevel(level))
	return nil
}

func computeDiff(ctx *cli.Context) error {
	original, err := os.ReadFile(ctx.String(originalFlag.Name))
	if err != nil {
		return err
	}
	changed, err := os.ReadFile(ctx.String(changedFlag.Name))
	if err != nil {
		return err
	}

	encoded := diff.Compute(original, changed)
	logger.Infof("diff has %d bytes for a %d byte change", len(encoded), len(changed))
	return os.WriteFile(ctx.String(outFlag.Name), encoded, 0o600)
}

func applyDiff(ctx *cli.Context) error {
	original, err := os.ReadFile(ctx.String(originalFlag.Name))
	if err != nil {
		return err
	}
	encoded, err := os.ReadFile(ctx.String(diffFlag.Name))
	if err != nil {
		return err
	}

	set, err := diff.ParseCopy(encoded)
	if err != nil {
		return err
	}
	changed, err := diff.ApplyCopy(original, set)
	if err != nil {
		return err
	}
	return os.WriteFile(ctx.String(outFlag.Name), changed, 0o600)
}

func inspectDiff(ctx *cli.Context) error {
	encoded, err := os.ReadFile(ctx.String(diffFlag.Name))
	if err != nil {
		return err
	}

	set, err := diff.ParseCopy(encoded)
	if err != nil {
		return err
	}

	fmt.Printf("changed length: %d\nsegments: %d\n", set.ChangedLen(), set.SegmentCount())
	for i := 0; i < set.SegmentCount(); i++ {
		segment, err := set.Segment(i)
		if err != nil {
			return err
		}
		fmt.Printf("  segment %d: target [%d, %d), %d bytes\n",
			i, segment.Start, segment.End, len(segment.Bytes))
	}
	return nil
}
