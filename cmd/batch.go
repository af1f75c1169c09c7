package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/scheduler"
	"github.com/tanq16/porygon/internal/utils"
	"github.com/tanq16/porygon/internal/ytdlp"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	Link       string `yaml:"link"`
	Format     string `yaml:"format,omitempty"`
	OutputPath string `yaml:"op,omitempty"`
}

type BatchFile struct {
	Downloads []BatchEntry `yaml:"downloads"`
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Download every entry of a YAML file, one after another",
		Long: "The file lists entries under a downloads key:\n\n" +
			"  downloads:\n" +
			"    - link: https://youtu.be/abc123\n" +
			"      format: Audio Only (mp3)\n" +
			"      op: ~/Music\n\n" +
			"format and op fall back to --format and --output-dir.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading YAML file: %w", err)
			}
			jobs, err := parseBatch(data, cfg.OutputDir, cfg.Format)
			if err != nil {
				return err
			}
			return runJobs(jobs)
		},
	}
}

func parseBatch(data []byte, outputDir, format string) ([]scheduler.Job, error) {
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	var jobs []scheduler.Job
	for i, entry := range batchFile.Downloads {
		if entry.Link == "" {
			output.PrintWarning(fmt.Sprintf("Entry %d has no link, skipping...", i+1))
			continue
		}
		job := scheduler.Job{URL: entry.Link, OutputDir: utils.AbsPath(outputDir), Format: format}
		if entry.OutputPath != "" {
			job.OutputDir = utils.AbsPath(entry.OutputPath)
		}
		if entry.Format != "" {
			if !ytdlp.IsKnownFormat(entry.Format) {
				output.PrintWarning(fmt.Sprintf("Entry %d has unknown format %q, skipping...", i+1, entry.Format))
				continue
			}
			job.Format = entry.Format
		}
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no valid jobs found in the batch file")
	}
	return jobs, nil
}
