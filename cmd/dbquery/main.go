// Package main runs ad-hoc SQL against the site database through the
// storage shim and prints the result as a table.
//
// Usage:
//
//	dbquery "SELECT code, name FROM courses"
//	dbquery -tables
//	dbquery            # reads statements from stdin, one per line
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/csdept/csweb/internal/config"
	"github.com/csdept/csweb/internal/storage"
)

const queryTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	tables := flag.Bool("tables", false, "print the row count of every table")
	flag.Parse()

	cfg, err := config.LoadForMode(config.ToolMode)
	if err != nil {
		color.Red("Failed to load configuration: %v", err)
		return 1
	}

	db, err := storage.New(context.Background(), cfg.DBPath)
	if err != nil {
		color.Red("Failed to open %s: %v", cfg.DBPath, err)
		return 1
	}
	defer func() { _ = db.Close() }()

	switch {
	case *tables:
		if err := printTableCounts(os.Stdout, db); err != nil {
			color.Red("%v", err)
			return 1
		}
	case flag.NArg() > 0:
		if err := runOne(os.Stdout, db, strings.Join(flag.Args(), " ")); err != nil {
			color.Red("%v", err)
			return 1
		}
	default:
		color.Cyan("Connected to %s. Enter SQL, one statement per line; empty line or \\q to quit.", cfg.DBPath)
		repl(os.Stdin, os.Stdout, db)
	}
	return 0
}

func repl(in io.Reader, out io.Writer, db *storage.DB) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "sql> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == `\q` {
			return
		}
		if err := runOne(out, db, line); err != nil {
			color.Red("%v", err)
		}
	}
}

func runOne(out io.Writer, db *storage.DB, query string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	start := time.Now()
	res, err := db.Query(ctx, strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if err != nil {
		return err
	}
	printResult(out, res)
	color.Green("(%s, %s)", res.Kind, time.Since(start).Round(time.Microsecond))
	return nil
}

// printResult renders reads as a table and writes as a one-line summary.
func printResult(out io.Writer, res *storage.Result) {
	if res.Kind != storage.KindRead {
		line := fmt.Sprintf("%d row(s) affected", res.AffectedRows)
		if res.InsertID != 0 {
			line += fmt.Sprintf(", last insert id %d", res.InsertID)
		}
		fmt.Fprintln(out, line)
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader(res.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			if row.IsNull(col) {
				cells[i] = "NULL"
				continue
			}
			cells[i] = row.String(col)
		}
		table.Append(cells)
	}
	table.Render()
	fmt.Fprintf(out, "%d row(s)\n", len(res.Rows))
}

func printTableCounts(out io.Writer, db *storage.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	color.Yellow("\nTable sizes")
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Table", "Rows"})
	table.SetAutoFormatHeaders(false)
	for _, name := range storage.Tables {
		res, err := db.Query(ctx, "SELECT COUNT(*) AS n FROM "+name)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", name, err)
		}
		table.Append([]string{name, strconv.FormatInt(res.First().Int64("n"), 10)})
	}
	table.Render()
	return nil
}
