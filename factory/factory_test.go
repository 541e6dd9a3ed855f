package factory_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-book/carbon"
	"github.com/warp/carbon-book/factory"
)

const paramsJSON = `{
  "name": "test",
  "biomass": [
    {"class": 1, "mean": 150, "uncertainty": 30},
    {"class": 3, "mean": 10}
  ],
  "flux": [
    {"class": 1, "function": "none"},
    {"class": 3, "function": "log", "coef": [20, 1]}
  ],
  "products": [
    {"name": "durable", "fraction": 0.6, "function": "const", "coef": [-5]},
    {"name": "burned", "fraction": 0.4, "function": "none"}
  ]
}`

// =============================================================================
// PARAMETERS
// =============================================================================

func TestParseParams(t *testing.T) {
	params, err := factory.ParseParams([]byte(paramsJSON))
	require.NoError(t, err)

	mean, uc, err := params.Biomass(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 300.0, mean)
	assert.Equal(t, 60.0, uc)

	d, err := params.Flux(3)
	require.NoError(t, err)
	assert.Equal(t, carbon.DecayLog, d.Kind)
	assert.Equal(t, [2]float64{20, 1}, d.Coef)

	products := params.Products()
	require.Len(t, products, 2)
	assert.Equal(t, [2]float64{-5, 0}, products[0].Decay.Coef)
	assert.True(t, products[1].Burned())
}

func TestParseParams_UnknownFunctionRejected(t *testing.T) {
	doc := strings.Replace(paramsJSON, `"function": "none"}`, `"function": "exp"}`, 1)
	_, err := factory.ParseParams([]byte(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, carbon.ErrInvalidFunction)
}

func TestParseParams_Validation(t *testing.T) {
	tests := []struct {
		name string
		pj   factory.ParamsJSON
	}{
		{"empty biomass", factory.ParamsJSON{}},
		{"negative mean", factory.ParamsJSON{Biomass: []factory.BiomassJSON{{Class: 1, Mean: -1}}}},
		{"duplicate class", factory.ParamsJSON{Biomass: []factory.BiomassJSON{{Class: 1, Mean: 1}, {Class: 1, Mean: 2}}}},
		{"fractions above one", factory.ParamsJSON{
			Biomass: []factory.BiomassJSON{{Class: 1, Mean: 1}},
			Products: []factory.ProductJSON{
				{Name: "fuel", Fraction: 0.7, Function: "none"},
				{Name: "pulp", Fraction: 0.7, Function: "none"},
			},
		}},
		{"too many coefficients", factory.ParamsJSON{
			Biomass: []factory.BiomassJSON{{Class: 1, Mean: 1}},
			Flux:    []factory.FluxJSON{{Class: 1, Function: "log", Coef: []float64{1, 2, 3}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.FromJSON(tt.pj)
			assert.ErrorIs(t, err, carbon.ErrInvalidConfig)
		})
	}
}

func TestParams_JSONRoundTrip(t *testing.T) {
	params, err := factory.ParseParams([]byte(paramsJSON))
	require.NoError(t, err)

	b, err := json.Marshal(factory.ToJSON("test", params))
	require.NoError(t, err)
	again, err := factory.ParseParams(b)
	require.NoError(t, err)

	assert.Equal(t, params.BiomassRows(), again.BiomassRows())
	assert.Equal(t, params.FluxRows(), again.FluxRows())
	assert.Equal(t, params.Products(), again.Products())
}

func TestParseParamsYAML(t *testing.T) {
	doc := `
name: yaml
biomass:
  - {class: 1, mean: 150, uncertainty: 30}
flux:
  - {class: 1, function: logdc, coef: [0.1]}
products:
  - {name: fuel, fraction: 1, function: none}
`
	params, err := factory.ParseParamsYAML([]byte(doc))
	require.NoError(t, err)
	d, err := params.Flux(1)
	require.NoError(t, err)
	assert.Equal(t, carbon.DecayLogDecay, d.Kind)
	assert.Equal(t, 0.1, d.Coef[0])
}

func TestLoadParams_CSVDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("biomass.csv", "id,biomass,uncertainty\n1,150,30\n5,60.5,12\n")
	write("flux.csv", "id,function,coef1,coef2\n1,none,0,0\n5,log,20,0\n")
	write("product.csv", "product,fraction,function,coef1,coef2\nburned,0.5,none,0,0\nfuel,0.5,logdc,0.5,0\n")

	params, err := factory.LoadParams(dir)
	require.NoError(t, err)
	assert.Equal(t, []carbon.ClassID{1, 5}, params.Classes())
	mean, _, err := params.Biomass(5, 1)
	require.NoError(t, err)
	assert.Equal(t, 60.5, mean)
	assert.InDelta(t, 1.0, params.FractionSum(), 1e-12)
}

func TestLoadParams_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "biomass.csv"), []byte("class,mean\n1,150\n"), 0o644))
	_, err := factory.LoadParams(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "id"`)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	doc := `
pixel_area: 1
forest_classes: [1, 2, 5]
equivalent: [[1, 5]]
regrow_biomass: {value: 4, uncertainty: 1}
force_end: 2015001
`
	cfg, err := factory.ParseConfig([]byte(doc))
	require.NoError(t, err)

	def := carbon.DefaultConfig()
	assert.Equal(t, 1.0, cfg.PixelArea)
	assert.Equal(t, def.CarbonFraction, cfg.CarbonFraction)
	assert.Equal(t, []carbon.ClassID{1, 2, 5}, cfg.ForestClasses)
	assert.Equal(t, def.SEBClasses, cfg.SEBClasses)
	assert.True(t, cfg.SameCover(1, 5))
	assert.Equal(t, carbon.Estimate{Value: 4, Uncertainty: 1}, cfg.RegrowBiomass)
	assert.Equal(t, carbon.DOY(2015001), cfg.ForceEnd)
	assert.Equal(t, def.ForceStart, cfg.ForceStart)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := factory.ParseConfig([]byte("force_start: 2010001\nforce_end: 2005001\n"))
	assert.ErrorIs(t, err, carbon.ErrInvalidConfig)

	_, err = factory.ParseConfig([]byte("carbon_fraction: 0\n"))
	assert.ErrorIs(t, err, carbon.ErrInvalidConfig)
}

func TestConfigYAML_RoundTrip(t *testing.T) {
	cfg := carbon.DefaultConfig()
	cfg.Equivalent = [][]carbon.ClassID{{1, 5}}
	out, err := factory.ConfigToYAML(cfg)
	require.NoError(t, err)

	back, err := factory.ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoadConfig_EmptyPathIsDefault(t *testing.T) {
	cfg, err := factory.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, carbon.DefaultConfig(), cfg)
}

// =============================================================================
// SEGMENTS AND ACTIVITY
// =============================================================================

func TestReadSegments_GroupsPixels(t *testing.T) {
	in := `px,py,class,start,end,break,se_biomass,se_uncertainty
1,1,1,2001001,2008200,2008250,180,20
1,1,3,2008300,2015365,0,,
2,1,1,2001001,2015365,0,-1,0
`
	pixels, err := factory.ReadSegments(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, pixels, 2)

	p := pixels[0]
	require.Len(t, p.Segments, 2)
	assert.Equal(t, carbon.MustOrdinal(2008250), p.Segments[0].Break)
	assert.Zero(t, p.Segments[1].Break)
	require.NotNil(t, p.SEBiomass)
	assert.Equal(t, carbon.Estimate{Value: 180, Uncertainty: 20}, *p.SEBiomass)

	assert.Nil(t, pixels[1].SEBiomass, "negative estimate means unset")
}

func TestReadSegments_InvalidDate(t *testing.T) {
	in := "px,py,class,start,end\n1,1,1,2001400,2002001\n"
	_, err := factory.ReadSegments(strings.NewReader(in))
	assert.ErrorIs(t, err, carbon.ErrInvalidDate)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadActivity(t *testing.T) {
	in := `start,end,sec,for_pas,sec_gain
2001,2005,100.5,20,3
2006,2010,0,12,0
`
	rows, err := factory.ReadActivity(strings.NewReader(in), factory.DatesYears)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, carbon.DOY(2001001), rows[0].Start)
	assert.Equal(t, carbon.DOY(2005365), rows[0].End)
	assert.Equal(t, 100.5, rows[0].Areas[carbon.TransitionSecondary])
	assert.Equal(t, 20.0, rows[0].Areas[carbon.TransitionForestPasture])
	assert.Zero(t, rows[0].Areas[carbon.TransitionSecondaryPasture], "absent column")
	assert.Equal(t, carbon.DOY(2006001), rows[1].Start)
	assert.Equal(t, carbon.DOY(2010365), rows[1].End)
}

func TestReadActivity_DOY(t *testing.T) {
	in := "start,end,for_pas\n2006001,2010180,12\n"
	rows, err := factory.ReadActivity(strings.NewReader(in), factory.DatesDOY)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, carbon.DOY(2006001), rows[0].Start)
	assert.Equal(t, carbon.DOY(2010180), rows[0].End)

	_, err = factory.ReadActivity(strings.NewReader("start,end,for_pas\n2006001,2010400,1\n"), factory.DatesDOY)
	assert.ErrorIs(t, err, carbon.ErrInvalidDate)
}

func TestReadActivity_YearsOutOfRange(t *testing.T) {
	_, err := factory.ReadActivity(strings.NewReader("start,end,for_pas\n2006001,2010365,1\n"), factory.DatesYears)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadActivity_NoTransitionColumn(t *testing.T) {
	_, err := factory.ReadActivity(strings.NewReader("start,end,area\n2001,2002,4\n"), factory.DatesYears)
	assert.Error(t, err)
}

func TestParseDateForm(t *testing.T) {
	form, err := factory.ParseDateForm("doy")
	require.NoError(t, err)
	assert.Equal(t, factory.DatesDOY, form)

	_, err = factory.ParseDateForm("months")
	assert.Error(t, err)
}

func TestIntegerColumns_OutOfRange(t *testing.T) {
	// GIVEN: ids and dates that do not fit their Go types
	// WHEN: reading the tables
	// THEN: a line-numbered error instead of a wrapped value

	cases := []struct {
		name string
		in   string
		col  string
	}{
		{"class above uint16", "px,py,class,start,end\n1,1,65537,2001001,2002001\n", "class"},
		{"negative class", "px,py,class,start,end\n1,1,-1,2001001,2002001\n", "class"},
		{"date above int32", "px,py,class,start,end\n1,1,1,4294967296,2002001\n", "start"},
		{"px above int32", "px,py,class,start,end\n2147483648,1,1,2001001,2002001\n", "px"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ReadSegments(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 2")
			assert.Contains(t, err.Error(), tc.col)
		})
	}
}

func TestReadParamsDir_ClassOutOfRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "biomass.csv"), []byte("id,biomass,uncertainty\n65537,100,10\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flux.csv"), []byte("id,function\n1,none\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product.csv"), []byte("product,fraction,function\nburned,1,none\n"), 0o644))

	_, err := factory.ReadParamsDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "biomass.csv line 2")
}

// =============================================================================
// REPORT OUTPUT
// =============================================================================

func TestWriteReport(t *testing.T) {
	records := []carbon.Record{
		{Date: 2001001, Stock: 1.5, Emission: 0.25, Productivity: -0.125, Net: 0.125, Unreleased: 0, StockUC: 0.3},
	}

	var buf bytes.Buffer
	require.NoError(t, factory.WriteReport(&buf, records, false))
	assert.Equal(t,
		"date,above,emission,productivity,net,unreleased\n"+
			"2001001,1.500000,0.250000,-0.125000,0.125000,0.000000\n",
		buf.String())

	buf.Reset()
	require.NoError(t, factory.WriteReport(&buf, records, true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,above,a_uc,emission,e_uc,productivity,p_uc,net,n_uc,unreleased,u_uc", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2001001,1.500000,0.300000,"))

	back, err := factory.ReadReport(&buf)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, records[0], back[0])
}

func TestWriteMetric(t *testing.T) {
	var buf bytes.Buffer
	err := factory.WriteMetric(&buf, "net", []factory.MetricRow{
		{PX: 1, PY: 2, Value: 3.25},
		{PX: 2, PY: 2, Value: carbon.NoData},
	})
	require.NoError(t, err)
	assert.Equal(t, "px,py,net\n1,2,3.250000\n2,2,-9999\n", buf.String())
}
