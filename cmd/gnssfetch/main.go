// Command gnssfetch is the one-shot request-fulfillment CLI: it resolves a
// single GNSS product request against the configured archives and, on
// success, copies the result into a target directory (spec §4.4's
// get_data composite operation exposed as a command-line tool).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/urfave/cli"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/cache"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/config"
	"github.com/NVIDIA/gnssfetch/internal/resolver"
)

const dateLayout = "2006-01-02"

// exitCodeForStatus maps a request's final status to the process exit code
// promised by the CLI contract: 0 only on COMPLETED, a distinct non-zero
// code per other category so a caller scripting this tool can branch on
// $? without parsing "status:" from stdout.
func exitCodeForStatus(status string) int {
	switch status {
	case cmn.StatusCompleted:
		return 0
	case cmn.StatusPending:
		return 2
	case cmn.StatusDelayed:
		return 3
	case cmn.StatusUnavailable:
		return 4
	default:
		return 5
	}
}

var (
	configFlag = cli.StringFlag{Name: "config", Usage: "path to the gnssfetch configuration file", Required: true}
	indexFlag  = cli.StringFlag{Name: "index", Usage: "path to the cache index file", Required: true}

	jobIDFlag   = cli.StringFlag{Name: "job-id", Usage: "job identifier this request belongs to", Required: true}
	typeFlag    = cli.StringFlag{Name: "type", Usage: "product type, e.g. orbit", Required: true}
	subtypeFlag = cli.StringFlag{Name: "subtype", Usage: "subtype spec, e.g. final or rapid+", Required: true}
	stationFlag = cli.StringFlag{Name: "station", Usage: "station code, if the product type requires one"}
	startFlag   = cli.StringFlag{Name: "start", Usage: "request start date (YYYY-MM-DD)", Required: true}
	endFlag     = cli.StringFlag{Name: "end", Usage: "request end date (YYYY-MM-DD)", Required: true}

	targetDirFlag = cli.StringFlag{Name: "target-dir", Usage: "directory to copy the fulfilled file(s) into"}
	queueFlag     = cli.BoolFlag{Name: "queue", Usage: "keep the request queued for later polling instead of discarding it once unresolved"}
	downloadFlag  = cli.BoolFlag{Name: "download", Usage: "attempt fulfillment now rather than only predicting availability"}
)

func main() {
	app := cli.NewApp()
	app.Name = "gnssfetch"
	app.Usage = "fetch a single GNSS reference product from the configured archives"
	app.Flags = []cli.Flag{configFlag, indexFlag, jobIDFlag, typeFlag, subtypeFlag, stationFlag, startFlag, endFlag, targetDirFlag, queueFlag, downloadFlag}
	app.Action = fetchHandler

	if err := app.Run(os.Args); err != nil {
		code := 1
		if ec, ok := err.(cli.ExitCoder); ok {
			code = ec.ExitCode()
		}
		if msg := err.Error(); msg != "" {
			glog.Errorf("gnssfetch: %v", err)
			fmt.Fprintln(os.Stderr, err)
		}
		glog.Flush()
		os.Exit(code)
	}
	glog.Flush()
}

func fetchHandler(c *cli.Context) error {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}

	start, err := time.Parse(dateLayout, c.String(startFlag.Name))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid --start: %v", err), 1)
	}
	end, err := time.Parse(dateLayout, c.String(endFlag.Name))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid --end: %v", err), 1)
	}

	backing, ok := findBacking(cfg, cfg.Cache.Datacenter)
	if !ok {
		return cli.NewExitError(fmt.Sprintf("cache datacenter %q is not a file-scheme archive", cfg.Cache.Datacenter), 1)
	}

	idx, err := cache.New(cache.Config{
		IndexPath:    c.String(indexFlag.Name),
		Backing:      backing,
		Catalog:      cfg.Catalog,
		Archives:     cfg.Archives,
		JobRetention: cfg.Cache.JobRetention,
		QueueLatency: cfg.Cache.QueueLatency,
	})
	if err != nil {
		return err
	}
	defer idx.Close()

	req := &resolver.Request{
		JobID:   c.String(jobIDFlag.Name),
		Type:    c.String(typeFlag.Name),
		Subtype: c.String(subtypeFlag.Name),
		Start:   start,
		End:     end,
		Station: c.String(stationFlag.Name),
	}

	var target archive.Archive
	if dir := c.String(targetDirFlag.Name); dir != "" {
		target = archive.NewFileArchive(&archive.Base{ArchiveName: "target"}, dir)
	}

	now := time.Now()
	rec, nextCheck, err := idx.GetData(req, target, c.Bool(queueFlag.Name), c.Bool(downloadFlag.Name), now)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "status: %s\n", rec.Status)
	if rec.SuppliedSubtype != "" {
		fmt.Fprintf(c.App.Writer, "supplied subtype: %s\n", rec.SuppliedSubtype)
	}
	if rec.AvailableDate != nil {
		fmt.Fprintf(c.App.Writer, "available: %s\n", rec.AvailableDate.Format(time.RFC3339))
	}
	if rec.Message != "" {
		fmt.Fprintf(c.App.Writer, "message: %s\n", rec.Message)
	}
	if nextCheck != nil {
		fmt.Fprintf(c.App.Writer, "next check: %s\n", nextCheck.Format(time.RFC3339))
	}

	if code := exitCodeForStatus(rec.Status); code != 0 {
		return cli.NewExitError("", code)
	}
	return nil
}

func findBacking(cfg *config.Config, name string) (*archive.FileArchive, bool) {
	for _, a := range cfg.Archives {
		if a.Name() != name {
			continue
		}
		fa, ok := a.(*archive.FileArchive)
		return fa, ok
	}
	return nil, false
}
