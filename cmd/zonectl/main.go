package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/parkbeam/internal/zones"
)

const usage = `usage:
  zonectl [-file zones.csv] list
  zonectl [-file zones.csv] save <id> <x1,y1,x2,y2,x3,y3,...>
  zonectl [-file zones.csv] remove <id>
  zonectl [-file zones.csv] convert <out.toml|out.csv>`

func main() {
	file := flag.String("file", "zones.csv", "zone file (.toml or legacy csv)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if err := run(*file, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "zonectl: %v\n", err)
		os.Exit(1)
	}
}

func run(file string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	switch args[0] {
	case "list":
		list, err := zones.LoadFile(file)
		if err != nil {
			return err
		}
		for i, z := range list {
			fmt.Printf("%d\tzone %d\t%d points\tarea %.0f\n", i+1, z.ZoneID, len(z.Points), zones.Area(z))
		}
		return nil
	case "save":
		if len(args) != 3 {
			return fmt.Errorf("save needs <id> <points>\n%s", usage)
		}
		fields := append(strings.Split(args[2], ","), args[1])
		z, err := zones.ParseCSVRecord(fields)
		if err != nil {
			return err
		}
		return zones.SaveZone(file, z)
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("remove needs <id>\n%s", usage)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("zone id: %w", err)
		}
		removed, err := zones.RemoveZone(file, id)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("zone %d not in %s", id, file)
		}
		return nil
	case "convert":
		if len(args) != 2 {
			return fmt.Errorf("convert needs <out>\n%s", usage)
		}
		list, err := zones.LoadFile(file)
		if err != nil {
			return err
		}
		return zones.SaveFile(args[1], list)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}
