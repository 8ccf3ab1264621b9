package main

import (
	"os"

	"github.com/npm-malwatch/npm-malwatch/pkg/aggregate"
	"github.com/npm-malwatch/npm-malwatch/pkg/preflight"
	"github.com/npm-malwatch/npm-malwatch/pkg/render"
)

func writeSummaryCSVFile(path string, summary aggregate.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render.SummaryCSV(f, summary)
}

func writePreflightJSONFile(path string, report preflight.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render.PreflightJSON(f, report)
}

func writePreflightCSVFile(path string, report preflight.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render.PreflightCSV(f, report)
}
