/*
main.go - Batch command-line entry point

PURPOSE:
  Runs the carbon engine over files: segment tables for pixel bookkeeping,
  activity tables for regional bookkeeping, and saved reports for
  summation. Every command reads CSV and writes CSV.

COMMANDS:
  book     Book every pixel of a segment table into the SQLite store
  report   Book and report pixels: summed/mean series, or one metric per pixel
  area     Book and report a region from an activity table
  record   Daily per-pool record of one pixel
  sum      Sum (or average) saved report files date by date

GLOBAL FLAGS:
  --params    Parameter file (.json/.yaml) or CSV directory
  --preset    Named parameter preset when --params is empty (default: amazon)
  --config    YAML engine config (default: built-in constants, regional
              preset for area)
  --window-start, --window-end
              Analysis window (YYYYDDD) when --config is empty
  --ensemble  Monte-Carlo width; 0 or 1 books deterministically
  --seed      Ensemble seed
  --debug     Development logging

EXAMPLES:
  cbook report --segments line_0042.csv --start 2001 --end 2015 --uc -o line.csv
  cbook report --segments line_0042.csv --metric net --date 2015001
  cbook area --activity colombia.csv --params ./parameters/colombia/
  cbook area --activity colombia_doy.csv --dates doy
  cbook sum line_*.csv --mean --count 5000

FAILURES:
  A pixel whose booking fails (unknown class, bad date) is logged and
  skipped; the command goes on with the next pixel.

SEE ALSO:
  - factory/tables.go: input formats
  - factory/report.go: output formats
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
