package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/dartlink/pkg/dartboard"
)

// calibrationCmd represents the calibration command group
var calibrationCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Export or import the segment calibration table",
}

var calibrationExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the calibration table as JSON",
	Long: `Write the segment calibration table as JSON, to the given file or to
stdout. The exported file can be edited and loaded back with 'calibration
import' or via 'run --calibration'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCalibrationExport,
}

var calibrationImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a calibration table JSON file",
	Long: `Parse and validate a calibration table JSON file against the default
table. The file is rejected as a whole if any entry is malformed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrationImport,
}

func init() {
	calibrationCmd.AddCommand(calibrationExportCmd)
	calibrationCmd.AddCommand(calibrationImportCmd)
}

func runCalibrationExport(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	mapper := newQuietMapper()
	table := mapper.Export()

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if len(args) == 0 {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(args[0], data, 0o644)
}

func runCalibrationImport(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	mapper := newQuietMapper()
	if err := importCalibrationFile(mapper, args[0]); err != nil {
		return err
	}

	fmt.Printf("Calibration table %s is valid (%d entries)\n", args[0], len(mapper.Export()))
	return nil
}

// importCalibrationFile loads a JSON calibration table into the mapper.
func importCalibrationFile(mapper *dartboard.Mapper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var table dartboard.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("invalid calibration JSON: %w", err)
	}

	return mapper.Import(table)
}

func newQuietMapper() *dartboard.Mapper {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return dartboard.NewMapper(logger)
}
