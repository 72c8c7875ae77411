package main

import (
	"fmt"
	"os"

	"github.com/matsen/vulngraph/internal/config"
	"github.com/matsen/vulngraph/internal/export"
	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/layout"
	"github.com/matsen/vulngraph/internal/render"
	"github.com/matsen/vulngraph/internal/scene"
	"github.com/matsen/vulngraph/internal/viewport"
)

// readGraph loads a result set from path. "-" reads JSON from stdin; other
// paths are read by extension.
func readGraph(path string) (graph.GraphData, error) {
	if path == "-" {
		return graph.ReadFile(path)
	}
	return export.ReadFile(config.ExpandPath(path))
}

// mustReadGraph loads a result set, exits on error.
func mustReadGraph(path string) graph.GraphData {
	data, err := readGraph(path)
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", path, err)
	}
	return data
}

// imageOptions controls rendering of image exports.
type imageOptions struct {
	Size     viewport.Size
	Ticks    int
	Selected string
}

// settledScene lays out data to rest.
func settledScene(data graph.GraphData, opts imageOptions) (*scene.Scene, graph.Report) {
	s := scene.New(opts.Size, scene.WithLogger(logger))
	report := s.SetData(data)
	ticks := opts.Ticks
	if ticks <= 0 {
		ticks = layout.DefaultSettleTicks
	}
	s.Settle(ticks)
	if opts.Selected != "" && !s.ClickNode(opts.Selected) {
		logger.Sugar().Warnf("node %q not in result set, nothing selected", opts.Selected)
	}
	return s, report
}

// writeGraphFile writes data to path in the format named by its extension,
// rendering a layout first for image formats.
func writeGraphFile(path string, data graph.GraphData, opts imageOptions) (export.Format, graph.Report, error) {
	path = config.ExpandPath(path)
	f, err := export.FormatFromPath(path)
	if err != nil {
		return "", graph.Report{}, err
	}

	if !f.IsImage() {
		_, report := graph.Sanitize(data)
		return f, report, export.WriteFile(path, f, data)
	}

	fonts, err := render.NewFonts()
	if err != nil {
		return "", graph.Report{}, fmt.Errorf("loading fonts: %w", err)
	}
	s, report := settledScene(data, opts)

	out, err := os.Create(path)
	if err != nil {
		return "", graph.Report{}, fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.WriteImage(out, f, s, fonts); err != nil {
		out.Close()
		return "", graph.Report{}, err
	}
	return f, report, out.Close()
}

// emitGraph prints data to stdout, or writes it to output when set.
func emitGraph(data graph.GraphData, output string, opts imageOptions) {
	if output == "" {
		if humanOutput {
			printGraphHuman(data)
			return
		}
		outputJSON(data)
		return
	}

	f, report, err := writeGraphFile(output, data, opts)
	if err != nil {
		exitWithError(ExitError, "writing %s: %v", output, err)
	}
	printWritten(WrittenResponse{Status: "written", Path: output, Format: string(f), Report: &report})
}

// defaultImageOptions sizes images from the configured viewport.
func defaultImageOptions(cfg config.Config) imageOptions {
	return imageOptions{Size: viewport.Size{
		Width:  float64(cfg.Viewport.Width),
		Height: float64(cfg.Viewport.Height),
	}}
}
