package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/dartlink/internal/storage"
	"github.com/srg/dartlink/pkg/config"
	"github.com/srg/dartlink/pkg/dartboard"
)

// throwsCmd represents the throws command
var throwsCmd = &cobra.Command{
	Use:   "throws",
	Short: "List recorded throws",
	Long: `List the most recent throws recorded in the database, newest first.

Use --device to restrict the listing to a single board address.`,
	RunE: runThrows,
}

var (
	throwsLimit  int
	throwsDevice string
	throwsFormat string
)

func init() {
	throwsCmd.Flags().IntVarP(&throwsLimit, "limit", "n", 20, "Maximum number of throws to list")
	throwsCmd.Flags().StringVar(&throwsDevice, "device", "", "Filter by device address")
	throwsCmd.Flags().StringVarP(&throwsFormat, "format", "f", "table", "Output format (table, json)")
	throwsCmd.Flags().String("db", "", "Database path, overrides config")
}

func runThrows(cmd *cobra.Command, args []string) error {
	if throwsFormat != "table" && throwsFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", throwsFormat)
	}
	if throwsLimit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", throwsLimit)
	}

	cmd.SilenceUsage = true

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbPath = cfg.DBPath
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := storage.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open throw database: %w", err)
	}
	defer store.Close()

	var throws []*dartboard.Throw
	if throwsDevice != "" {
		throws, err = store.ThrowsByDevice(throwsDevice, throwsLimit)
	} else {
		throws, err = store.RecentThrows(throwsLimit)
	}
	if err != nil {
		return err
	}

	if throwsFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(throws)
	}
	return displayThrowsTable(throws)
}

func displayThrowsTable(throws []*dartboard.Throw) error {
	if len(throws) == 0 {
		fmt.Println("No throws recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSEGMENT\tSCORE\tDEVICE")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	for _, t := range throws {
		score := "-"
		if t.Score != nil {
			score = fmt.Sprintf("%d", *t.Score)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.At.Local().Format("2006-01-02 15:04:05"), t.Name, score, t.DeviceAddress)
	}

	return w.Flush()
}
