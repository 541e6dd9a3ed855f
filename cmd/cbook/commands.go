package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/carbon-book/carbon"
	"github.com/warp/carbon-book/factory"
	"github.com/warp/carbon-book/landcover"
	"github.com/warp/carbon-book/log"
	"github.com/warp/carbon-book/store/sqlite"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

type options struct {
	params      string
	preset      string
	config      string
	windowStart int
	windowEnd   int
	ensemble    int
	seed        uint64
	debug       bool
	out         string
}

// load reads the engine config and parameter tables. Without --config,
// regional runs use the regional preset and pixel runs the Landsat window.
func (o *options) load(regional bool) (carbon.Config, *carbon.Params, error) {
	cfg, err := factory.LoadConfig(o.config)
	if err != nil {
		return carbon.Config{}, nil, err
	}
	if o.config == "" {
		switch {
		case regional:
			cfg = landcover.RegionalConfig()
		case o.windowStart != 0 || o.windowEnd != 0:
			start, end := cfg.ForceStart, cfg.ForceEnd
			if o.windowStart != 0 {
				start = carbon.DOY(o.windowStart)
			}
			if o.windowEnd != 0 {
				end = carbon.DOY(o.windowEnd)
			}
			cfg = landcover.LandsatConfig(start, end)
		}
	}
	if o.params != "" {
		params, err := factory.LoadParams(o.params)
		return cfg, params, err
	}
	build, ok := landcover.Presets[o.preset]
	if !ok {
		return carbon.Config{}, nil, fmt.Errorf("unknown preset %q", o.preset)
	}
	params, err := factory.ParseParams([]byte(build()))
	return cfg, params, err
}

// z returns the shared ensemble of the run; nil books deterministically.
func (o *options) z() []float64 {
	if o.ensemble <= 1 {
		return nil
	}
	return carbon.NewEnsemble(o.ensemble, o.seed)
}

// output opens --out, or the command's stdout when unset.
func (o *options) output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if o.out == "" || o.out == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(o.out)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "cbook",
		Short:         "Land-cover carbon bookkeeping",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(o.debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.params, "params", "", "parameter file (.json/.yaml) or CSV directory")
	pf.StringVar(&o.preset, "preset", "amazon", "parameter preset when --params is empty")
	pf.StringVar(&o.config, "config", "", "YAML engine config")
	pf.IntVar(&o.windowStart, "window-start", 0, "analysis window start (YYYYDDD) when --config is empty")
	pf.IntVar(&o.windowEnd, "window-end", 0, "analysis window end (YYYYDDD) when --config is empty")
	pf.IntVar(&o.ensemble, "ensemble", 0, "Monte-Carlo ensemble width")
	pf.Uint64Var(&o.seed, "seed", 1, "ensemble seed")
	pf.BoolVar(&o.debug, "debug", false, "development logging")
	pf.StringVarP(&o.out, "out", "o", "", "output file (default stdout)")

	root.AddCommand(
		newBookCmd(o),
		newReportCmd(o),
		newAreaCmd(o),
		newRecordCmd(o),
		newSumCmd(o),
	)
	return root
}

// =============================================================================
// PIXELS
// =============================================================================

func readSegmentsFile(path string) ([]factory.PixelInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return factory.ReadSegments(f)
}

func bookOne(cfg carbon.Config, params *carbon.Params, px factory.PixelInput, z []float64) (*carbon.Collection, error) {
	return carbon.BookPixel(cfg, params, px.Segments, carbon.PixelOptions{SEBiomass: px.SEBiomass, Ensemble: z})
}

// bookAll books every pixel; failed and empty pixels come back nil.
func bookAll(cfg carbon.Config, params *carbon.Params, pixels []factory.PixelInput, z []float64) []*carbon.Collection {
	out := make([]*carbon.Collection, len(pixels))
	for i, px := range pixels {
		col, err := bookOne(cfg, params, px, z)
		if err != nil {
			log.Warnw("pixel skipped", "px", px.PX, "py", px.PY, "error", err)
			continue
		}
		if col.Empty() {
			log.Debugw("pixel outside window", "px", px.PX, "py", px.PY)
			continue
		}
		out[i] = col
	}
	return out
}

func newBookCmd(o *options) *cobra.Command {
	var segments, db, label string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book every pixel of a segment table into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, params, err := o.load(false)
			if err != nil {
				return err
			}
			pixels, err := readSegmentsFile(segments)
			if err != nil {
				return err
			}
			store, err := sqlite.New(db)
			if err != nil {
				return err
			}
			defer store.Close()

			w, closeOut, err := o.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			cw := csv.NewWriter(w)
			cw.Write([]string{"px", "py", "run", "pools"})
			ctx := context.Background()
			booked := 0
			for i, col := range bookAll(cfg, params, pixels, o.z()) {
				if col == nil {
					continue
				}
				px := pixels[i]
				run := carbon.Run{
					ID:        uuid.NewString(),
					Kind:      carbon.RunPixel,
					Label:     label,
					PX:        px.PX,
					PY:        px.PY,
					CreatedAt: time.Now().UTC(),
				}
				if err := store.SaveRun(ctx, run, col); err != nil {
					return err
				}
				cw.Write([]string{itoa(px.PX), itoa(px.PY), run.ID, strconv.Itoa(col.Len())})
				booked++
			}
			cw.Flush()
			log.Infow("booking done", "pixels", len(pixels), "booked", booked)
			return cw.Error()
		},
	}
	cmd.Flags().StringVar(&segments, "segments", "", "segment table (CSV)")
	cmd.Flags().StringVar(&db, "db", "cbook.db", "SQLite database path")
	cmd.Flags().StringVar(&label, "label", "", "label stored with every run")
	cmd.MarkFlagRequired("segments")
	return cmd
}

type reportFlags struct {
	start, end, step int
	uc, mean         bool
	increments       bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.start, "start", 2000, "first report year")
	cmd.Flags().IntVar(&f.end, "end", 2020, "last report year")
	cmd.Flags().IntVar(&f.step, "step", 1, "years between records")
	cmd.Flags().BoolVar(&f.uc, "uc", false, "write uncertainty columns")
	cmd.Flags().BoolVar(&f.increments, "increments", false, "per-interval fluxes instead of cumulative")
}

func (f *reportFlags) period() carbon.ReportPeriod {
	return carbon.YearPeriod(f.start, f.end, f.step)
}

func (f *reportFlags) report(cfg carbon.Config, col *carbon.Collection) ([]carbon.Record, error) {
	rep := carbon.NewReporter(cfg, col)
	if f.increments {
		return rep.Increments(f.period())
	}
	return rep.Report(f.period())
}

func newReportCmd(o *options) *cobra.Command {
	var (
		segments string
		metric   string
		date     int
		rf       reportFlags
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report the pixels of a segment table",
		Long: "Books every pixel and writes the summed series (or the mean with --mean).\n" +
			"With --metric, writes one value per pixel at --date instead, as density.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, params, err := o.load(false)
			if err != nil {
				return err
			}
			pixels, err := readSegmentsFile(segments)
			if err != nil {
				return err
			}
			w, closeOut, err := o.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			cols := bookAll(cfg, params, pixels, o.z())
			if metric != "" {
				rows, err := metricRows(cfg, pixels, cols, metric, carbon.DOY(date))
				if err != nil {
					return err
				}
				return factory.WriteMetric(w, metric, rows)
			}

			var reports [][]carbon.Record
			for _, col := range cols {
				if col == nil {
					continue
				}
				records, err := rf.report(cfg, col)
				if err != nil {
					return err
				}
				reports = append(reports, records)
			}
			var out []carbon.Record
			if rf.mean {
				out, err = carbon.MeanReports(reports, len(pixels))
			} else {
				out, err = carbon.SumReports(reports)
			}
			if err != nil {
				return err
			}
			return factory.WriteReport(w, out, rf.uc)
		},
	}
	cmd.Flags().StringVar(&segments, "segments", "", "segment table (CSV)")
	cmd.Flags().StringVar(&metric, "metric", "", "write one metric per pixel (above, emission, productivity, net, unreleased)")
	cmd.Flags().IntVar(&date, "date", 2020001, "metric date (YYYYDDD)")
	cmd.Flags().BoolVar(&rf.mean, "mean", false, "average over all pixels instead of summing")
	rf.register(cmd)
	cmd.MarkFlagRequired("segments")
	return cmd
}

// metricRows evaluates one metric per pixel as a density (mass / scale).
// Pixels without a collection carry NoData.
func metricRows(cfg carbon.Config, pixels []factory.PixelInput, cols []*carbon.Collection, metric string, date carbon.DOY) ([]factory.MetricRow, error) {
	if !date.Valid() {
		return nil, fmt.Errorf("%w: %d", carbon.ErrInvalidDate, date)
	}
	if _, err := (carbon.Record{}).Metric(metric); err != nil {
		return nil, err
	}
	rows := make([]factory.MetricRow, len(pixels))
	for i, px := range pixels {
		rows[i] = factory.MetricRow{PX: px.PX, PY: px.PY, Value: carbon.NoData}
		if cols[i] == nil {
			continue
		}
		v, _ := carbon.NewReporter(cfg, cols[i]).EvalSum(date).Metric(metric)
		rows[i].Value = v / cfg.Scale(cfg.PixelArea)
	}
	return rows, nil
}

func newRecordCmd(o *options) *cobra.Command {
	var (
		segments string
		x, y     int32
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Write the daily per-pool record of one pixel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, params, err := o.load(false)
			if err != nil {
				return err
			}
			pixels, err := readSegmentsFile(segments)
			if err != nil {
				return err
			}
			for _, px := range pixels {
				if px.PX != x || px.PY != y {
					continue
				}
				col, err := bookOne(cfg, params, px, o.z())
				if err != nil {
					return err
				}
				if col.Empty() {
					return fmt.Errorf("pixel %d,%d: %w", x, y, carbon.ErrEmptyInput)
				}
				w, closeOut, err := o.output(cmd)
				if err != nil {
					return err
				}
				defer closeOut()
				return factory.WritePoolSeries(w, carbon.NewReporter(cfg, col).Record())
			}
			return fmt.Errorf("pixel %d,%d not in %s", x, y, segments)
		},
	}
	cmd.Flags().StringVar(&segments, "segments", "", "segment table (CSV)")
	cmd.Flags().Int32Var(&x, "px", 0, "pixel column")
	cmd.Flags().Int32Var(&y, "py", 0, "pixel row")
	cmd.MarkFlagRequired("segments")
	return cmd
}

// =============================================================================
// REGIONS
// =============================================================================

func newAreaCmd(o *options) *cobra.Command {
	var (
		activity string
		dates    string
		studyEnd int
		rf       reportFlags
	)
	cmd := &cobra.Command{
		Use:   "area",
		Short: "Report a region from an activity table",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := factory.ParseDateForm(dates)
			if err != nil {
				return err
			}
			cfg, params, err := o.load(true)
			if err != nil {
				return err
			}
			f, err := os.Open(activity)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := factory.ReadActivity(f, form)
			if err != nil {
				return err
			}

			col, err := carbon.BookRegion(cfg, params, rows, carbon.RegionOptions{
				Ensemble: o.z(),
				StudyEnd: carbon.DOY(studyEnd),
			})
			if err != nil {
				return err
			}
			if col.Empty() {
				return fmt.Errorf("%s: %w", activity, carbon.ErrEmptyInput)
			}
			records, err := rf.report(cfg, col)
			if err != nil {
				return err
			}

			w, closeOut, err := o.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()
			log.Infow("region booked", "periods", len(rows), "pools", col.Len())
			return factory.WriteReport(w, records, rf.uc)
		},
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity table (CSV)")
	cmd.Flags().StringVar(&dates, "dates", "years", "form of the table's start/end columns (years, doy)")
	cmd.Flags().IntVar(&studyEnd, "study-end", 0, "study end (YYYYDDD), default the config window end")
	rf.register(cmd)
	cmd.MarkFlagRequired("activity")
	return cmd
}

// =============================================================================
// SUMMATION
// =============================================================================

func newSumCmd(o *options) *cobra.Command {
	var (
		mean  bool
		count int
		uc    bool
	)
	cmd := &cobra.Command{
		Use:   "sum FILE...",
		Short: "Sum saved report files date by date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([][]carbon.Record, 0, len(args))
			for _, path := range args {
				records, err := readReportFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				reports = append(reports, records)
			}

			var (
				out []carbon.Record
				err error
			)
			if mean {
				if count == 0 {
					count = len(reports)
				}
				out, err = carbon.MeanReports(reports, count)
			} else {
				out, err = carbon.SumReports(reports)
			}
			if err != nil {
				return err
			}

			w, closeOut, err := o.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()
			return factory.WriteReport(w, out, uc)
		},
	}
	cmd.Flags().BoolVar(&mean, "mean", false, "average instead of summing")
	cmd.Flags().IntVar(&count, "count", 0, "divisor for --mean (default: number of files)")
	cmd.Flags().BoolVar(&uc, "uc", false, "write uncertainty columns")
	return cmd
}

func readReportFile(path string) ([]carbon.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return factory.ReadReport(f)
}

func itoa(v int32) string { return strconv.Itoa(int(v)) }
