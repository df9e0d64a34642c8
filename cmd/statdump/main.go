// statdump renders one or more peer diagnostics files as terminal tables.
//
//	statdump /tmp/M.stats /tmp/A.stats
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/ryandielhenn/r2rmesh/pkg/router"
)

func main() {
	byType := flag.Bool("by-type", true, "break rows down by message type")
	flag.Parse()

	if flag.NArg() == 0 {
		pterm.Error.Println("usage: statdump [-by-type=false] FILE.stats...")
		os.Exit(2)
	}

	exit := 0
	for _, path := range flag.Args() {
		stats, err := readFile(path)
		if err != nil {
			pterm.Error.Println(err)
			exit = 1
			continue
		}
		rows := summarize(stats, *byType)
		pterm.DefaultSection.Println(filepath.Base(path))
		if len(rows) == 0 {
			pterm.Info.Println("no entries")
			continue
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(tableData(rows)).Render(); err != nil {
			pterm.Error.Println(err)
			exit = 1
		}
		pterm.Info.Println(pterm.Sprintf("%d entries", len(stats)))
	}
	os.Exit(exit)
}

func readFile(path string) ([]router.MessageStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stats, err := router.ReadStats(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}

func tableData(rows []summaryRow) pterm.TableData {
	data := pterm.TableData{{"Peer", "Type", "Direction", "Messages", "Bytes"}}
	for _, r := range rows {
		data = append(data, []string{
			pterm.LightCyan(r.Peer),
			r.Type,
			r.Direction.String(),
			fmt.Sprint(r.Count),
			fmt.Sprint(r.Bytes),
		})
	}
	return data
}
