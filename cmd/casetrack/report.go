package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/rpggio/casetrack/internal/client"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd(load settingsLoader) *cobra.Command {
	var (
		author  string
		summary string
		charts  []string
	)
	cmd := &cobra.Command{
		Use:   "report <code>",
		Short: "Print the report input for a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd)
			if err != nil {
				return err
			}

			images, err := readCharts(charts)
			if err != nil {
				return err
			}

			logger := newLogger(cmd, s)
			c := client.New(s.Server, s.User, client.WithLogger(logger))
			doc, err := c.Get(cmd.Context(), session.NormalizeCode(args[0]))
			if err != nil {
				return err
			}
			if author == "" {
				author = s.User
			}

			gen := report.NewGenerator(nil, report.JSONRenderer{W: cmd.OutOrStdout()}, logger)
			_, err = gen.Generate(cmd.Context(), report.Input{
				Cases:      doc.Cases,
				AuthorName: author,
				Summary:    summary,
				Charts:     images,
			})
			return err
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "report author (default: --user)")
	cmd.Flags().StringVar(&summary, "summary", "", "summary text for the report")
	cmd.Flags().StringSliceVar(&charts, "chart", nil, "chart image to embed (repeatable)")
	return cmd
}

func readCharts(paths []string) ([]report.ChartImage, error) {
	images := make([]report.ChartImage, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read chart: %w", err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		images = append(images, report.ChartImage{Name: filepath.Base(path), MIMEType: mimeType, Data: data})
	}
	return images, nil
}
