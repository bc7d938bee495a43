package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gitaditya567/itskillhub/internal/bootstrap"
	"github.com/gitaditya567/itskillhub/internal/config"
	"github.com/gitaditya567/itskillhub/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	util.InitLogger(cfg.LogLevel)

	ctx := context.Background()
	rt, err := bootstrap.New(ctx, cfg)
	if err != nil {
		exitErr(fmt.Errorf("init app: %w", err))
	}
	defer rt.Close()

	reports, err := inspectBooks(ctx, rt.Store, rt.Artifacts)
	if err != nil {
		exitErr(err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPAGES\tPREVIEW\tSTATUS")
	failed := 0
	for _, r := range reports {
		status := "ok"
		if !r.ok() {
			failed++
			status = fmt.Sprint(r.Problems)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.Title, r.Pages, r.Preview, status)
	}
	_ = tw.Flush()
	if len(reports) == 0 {
		fmt.Println("No books found.")
	}
	if failed > 0 {
		rt.Close()
		fmt.Fprintf(os.Stderr, "%d of %d books need attention\n", failed, len(reports))
		os.Exit(1)
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "inspectbooks: %v\n", err)
	os.Exit(1)
}
