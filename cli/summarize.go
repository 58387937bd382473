package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/navbench/episode"
	"go.viam.com/navbench/report"
)

// SummarizeAction prints statistics over a result log.
func SummarizeAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one result log")
	}
	records, err := episode.ReadResultLog(c.Args().First())
	if err != nil {
		return err
	}
	summary, err := report.Summarize(records)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary.String())

	if c.Bool(summarizeFlagByIndex) {
		summaries, err := report.SummarizeByIndex(records)
		if err != nil {
			return err
		}
		printf(c.App.Writer, "%s", report.IndexTable(summaries))
	}
	if c.Bool(summarizeFlagRecords) {
		printf(c.App.Writer, "%s", report.RecordsTable(records))
	}
	return nil
}
